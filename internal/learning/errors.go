package learning

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("persistence error")
)

// PersistenceError wraps a read/write fault from the row store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

type ErrorCode string

const (
	CodeUnauthenticated  ErrorCode = "unauthenticated"
	CodeNotFound         ErrorCode = "not_found"
	CodePersistenceError ErrorCode = "persistence_error"
)

// CodeOf classifies err into the save taxonomy.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodePersistenceError
	}
}
