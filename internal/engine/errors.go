package engine

import "errors"

// Validation errors are rejected at the API boundary before any store access.
var (
	ErrOwnerRequired = errors.New("lethe: owner id required")
	ErrTextRequired  = errors.New("lethe: text required")
	ErrTextTooShort  = errors.New("lethe: text too short to retain")
	ErrBadSelector   = errors.New("lethe: category and key required")
)

// StoreError wraps a persistence failure so callers can distinguish it from
// validation problems. It propagates from Ingest, BuildContext and
// RunMaintenance; opportunistic maintenance absorbs it instead.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "lethe: store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is an input validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrOwnerRequired) ||
		errors.Is(err, ErrTextRequired) ||
		errors.Is(err, ErrTextTooShort) ||
		errors.Is(err, ErrBadSelector)
}
