package models

import "errors"

// Error taxonomy for the detection core. None of these are fatal to the
// process; retry policy belongs to the caller.
var (
	// ErrValidation marks a malformed or incomplete sample. The sample is
	// dropped and logged; no state changes.
	ErrValidation = errors.New("validation error")

	// ErrLookupMiss marks a missing reference range or baseline for a single
	// (parameter, tier); that parameter is skipped, evaluation continues.
	ErrLookupMiss = errors.New("lookup miss")

	// ErrStorage marks a storage collaborator failure. The in-flight
	// operation is aborted and partial writes rolled back.
	ErrStorage = errors.New("storage error")

	// ErrConfig marks an invalid detector configuration request. The prior
	// selection stays in effect.
	ErrConfig = errors.New("config error")
)
