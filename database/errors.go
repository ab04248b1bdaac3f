package database

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable marks errors where the store itself is unreachable.
// The orchestrator aborts the whole cycle on this error and retries on the
// next cycle; per-deal errors that do not wrap it are tolerated.
var ErrStorageUnavailable = errors.New("storage unavailable")

// DBError represents a database operation error with context
type DBError struct {
	Operation string
	Err       error
}

// Error implements the error interface
func (e *DBError) Error() string {
	return fmt.Sprintf("database error in %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error
func (e *DBError) Unwrap() error {
	return e.Err
}

// WrapDBError wraps a database error with operation context
func WrapDBError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &DBError{
		Operation: operation,
		Err:       err,
	}
}
