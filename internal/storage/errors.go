package storage

import (
	"errors"
	"fmt"
)

// ErrInvalidDuration is returned when a session has a non-positive duration.
var ErrInvalidDuration = errors.New("session duration must be positive")

// ErrInvalidRule is returned for an exclusion rule with an unknown type or
// an uncompilable pattern.
var ErrInvalidRule = errors.New("invalid exclusion rule")

// StorageError reports a failed store operation. The transaction behind a
// failed operation has been rolled back.
type StorageError struct {
	Op  string // operation name, e.g. "record session"
	Err error  // underlying driver or validation error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps err as a *StorageError, or returns nil.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
