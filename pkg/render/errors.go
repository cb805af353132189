package render

import "errors"

// ErrInvalidVersion is returned when a plugin version is not semantic
var ErrInvalidVersion = errors.New("version is not semantic")
