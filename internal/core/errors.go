package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage error")

	ErrInvalidAmount   = &ValidationError{Field: "amount", Reason: "must be greater than zero and at most 999999999999.99"}
	ErrInvalidKind     = &ValidationError{Field: "kind", Reason: "must be income or expense"}
	ErrEmptyCategory   = &ValidationError{Field: "category", Reason: "cannot be empty"}
	ErrCategoryTooLong = &ValidationError{Field: "category", Reason: fmt.Sprintf("too long (max %d characters)", MaxCategoryLength)}
	ErrInvalidOwner    = &ValidationError{Field: "owner_id", Reason: "must be set"}
	ErrInvalidWindow   = &ValidationError{Field: "days", Reason: "must be a positive number of days"}
	ErrInvalidLimit    = &ValidationError{Field: "limit", Reason: "must be a positive integer"}
	ErrInvalidBucket   = &ValidationError{Field: "bucket", Reason: "must be day, week or month"}
)

// ValidationError reports malformed caller input. It is always returned
// before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	t, ok := target.(*ValidationError)
	return ok && t.Field == e.Field && t.Reason == e.Reason
}

// StorageError wraps a failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err, returning nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsStorage reports whether err comes from the storage layer.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
