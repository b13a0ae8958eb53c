package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrPersistence         = errors.New("persistence error")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// PersistenceError indicates the storage backend rejected a write.
// The previously persisted document is unchanged.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) hold.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// InvalidFormatError indicates an import payload that is not JSON or lacks required keys.
type InvalidFormatError struct {
	Reason string
	Err    error
}

func (e *InvalidFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid document: %s: %v", e.Reason, e.Err)
	}
	return "invalid document: " + e.Reason
}

func (e *InvalidFormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidFormat) hold.
func (e *InvalidFormatError) Is(target error) bool { return target == ErrInvalidFormat }
