package prefs

import (
	"errors"
	"fmt"
)

// ErrInvalidFavourite is returned for a favourite with neither a key nor
// the age, skill and slug to derive one.
var ErrInvalidFavourite = errors.New("favourite needs a key or age, skill and slug")

// PersistenceError reports a write that did not reach durable storage. The
// in-memory view of the store is left as it was before the call.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the storage error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func persistErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if IsPersistenceError(err) {
		return err
	}
	return &PersistenceError{Op: op, Key: key, Err: err}
}
