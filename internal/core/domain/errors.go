package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLockConflict    = errors.New("reservation lock already held")
)

// InsufficientStockError is returned when a remove or reserve asks for more
// than is available. The failed operation changed nothing.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

// InsufficientReservedStockError is returned when a release, fulfill or
// finalize asks for more than is currently reserved.
type InsufficientReservedStockError struct {
	Reserved  int
	Requested int
}

func (e *InsufficientReservedStockError) Error() string {
	return fmt.Sprintf("insufficient reserved stock: reserved %d, requested %d", e.Reserved, e.Requested)
}
