package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// ConflictError signals an optimistic-concurrency version mismatch.
// The caller must re-read the entity and retry; no part of the write was applied.
type ConflictError struct {
	Entity string
	ID     string
}

func NewConflictError(entity, id string) error {
	return &ConflictError{Entity: entity, ID: id}
}

func (err ConflictError) Error() string {
	return fmt.Sprintf("%s %s: version mismatch", err.Entity, err.ID)
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// DuplicateError signals that an entity with the same identity already exists.
type DuplicateError struct {
	Entity string
	ID     string
}

func NewDuplicateError(entity, id string) error {
	return &DuplicateError{Entity: entity, ID: id}
}

func (err DuplicateError) Error() string {
	return fmt.Sprintf("%s %s already exists", err.Entity, err.ID)
}

func IsDuplicate(err error) bool {
	_, ok := errors.Cause(err).(*DuplicateError)
	return ok
}

type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", err.Entity, err.ID)
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// UnavailableError signals a transient backing-store failure. It carries the
// operation and entity identity so callers can decide on retry/backoff;
// the core never retries on its own.
type UnavailableError struct {
	Op     string
	Entity string
	ID     string
	Err    error
}

func NewUnavailableError(op, entity, id string, err error) error {
	return &UnavailableError{Op: op, Entity: entity, ID: id, Err: err}
}

func (err UnavailableError) Error() string {
	return fmt.Sprintf("%s %s %s: store unavailable: %v", err.Op, err.Entity, err.ID, err.Err)
}

func (err UnavailableError) Unwrap() error { return err.Err }

func IsUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*UnavailableError)
	return ok
}
