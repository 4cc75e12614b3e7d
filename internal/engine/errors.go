package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports required fields missing from an ingest record.
// Surfaced to callers as a 4xx-equivalent.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.MissingFields, ", ")
}

// PersistenceError wraps a storage failure. Surfaced as a 5xx-equivalent;
// the engine never retries on its own.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrDecisionMissing indicates an ingested event has no decision row. The
// pipeline writes a decision for every event, so hitting this means an
// internal consistency failure, not a recoverable condition.
var ErrDecisionMissing = errors.New("no risk decision recorded for event")

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
