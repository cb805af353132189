package publish

import "errors"

var (
	// ErrUploadFailed is returned when an object cannot be stored
	ErrUploadFailed = errors.New("upload failed")

	// ErrNoBucket is returned when the publisher has no bucket configured
	ErrNoBucket = errors.New("no bucket configured")
)
