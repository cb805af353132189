package smx

import "errors"

var (
	// ErrInvalidMagic is returned when the file is not an SMX image
	ErrInvalidMagic = errors.New("invalid smx magic")

	// ErrTruncated is returned when an offset points outside the image
	ErrTruncated = errors.New("smx image truncated")

	// ErrUnsupportedCompression is returned for unknown compression kinds
	ErrUnsupportedCompression = errors.New("unsupported smx compression")

	// ErrMissingSection is returned when a required section is absent
	ErrMissingSection = errors.New("smx section missing")

	// ErrNoMyInfo is returned when the plugin exports no myinfo public variable
	ErrNoMyInfo = errors.New("smx plugin has no myinfo")
)
