package config

import "errors"

var (
	// ErrConfigLoad is returned when the settings document cannot be read,
	// decoded, resolved or validated. It is fatal for a run.
	ErrConfigLoad = errors.New("config load failed")

	// ErrUnknownReference is returned when a %(key)s reference names a key
	// that does not exist in scope
	ErrUnknownReference = errors.New("unknown reference")

	// ErrReferenceCycle is returned when references form a cycle
	ErrReferenceCycle = errors.New("reference cycle")
)
