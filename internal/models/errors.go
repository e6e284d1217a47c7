package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = fmt.Errorf("entity not found")
	ErrInstantiation     = fmt.Errorf("cannot instantiate entity")
	ErrInvalidPagination = fmt.Errorf("invalid pagination")
	ErrInvalidInput      = fmt.Errorf("invalid input")
)

// NotFoundError reports that no entity of EntityType exists for ID.
//
// It carries no entity state. Use errors.Is(err, [ErrNotFound]) to match any entity type
// or errors.As to read the type and identifier.
type NotFoundError struct {
	EntityType string
	ID         any
}

// NewNotFoundError builds a [NotFoundError] for the given type name and identifier.
func NewNotFoundError(entityType string, id any) *NotFoundError {
	return &NotFoundError{EntityType: entityType, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %v not found", e.EntityType, e.ID)
}

// Is makes every [NotFoundError] match [ErrNotFound].
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is, or wraps, a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
