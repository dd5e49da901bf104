package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed input with field-level detail.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// InsufficientStockError names the dress that could not cover the
// requested quantity. Stock is never partially deducted.
type InsufficientStockError struct {
	DressID   string
	DressName string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for dress %s: requested %d, available %d",
		e.DressID, e.Requested, e.Available)
}

// InvalidTransitionError reports a state change not permitted from the
// entity's current status. The entity is left unchanged.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AlreadyProcessedError reports an operation on a payment that has
// already left the pending state.
type AlreadyProcessedError struct {
	PaymentID string
	Status    PaymentStatus
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("payment %s already processed (status %s)", e.PaymentID, e.Status)
}
