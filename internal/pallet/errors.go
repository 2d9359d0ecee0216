package pallet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInfeasibleLoad matches every *InfeasibleLoadError.
	ErrInfeasibleLoad = errors.New("infeasible load")
)

// InvalidInputError reports a missing, non-finite, zero, or negative field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// Reason identifies why a load cannot be built.
type Reason string

const (
	ReasonDoesNotFit    Reason = "doesNotFit"
	ReasonExceedsHeight Reason = "exceedsHeight"
	ReasonExceedsWeight Reason = "exceedsWeight"
	ReasonZeroCapacity  Reason = "zeroCapacity"
)

func (r Reason) message() string {
	switch r {
	case ReasonDoesNotFit:
		return "box does not fit pallet"
	case ReasonExceedsHeight:
		return "box exceeds stack height"
	case ReasonExceedsWeight:
		return "box exceeds weight limit"
	case ReasonZeroCapacity:
		return "zero capacity: no layer fits"
	default:
		return string(r)
	}
}

// InfeasibleLoadError reports individually valid inputs that jointly describe
// a load which cannot be built.
type InfeasibleLoadError struct {
	Reason Reason
}

func (e *InfeasibleLoadError) Error() string {
	return "infeasible load: " + e.Reason.message()
}

func (e *InfeasibleLoadError) Unwrap() error { return ErrInfeasibleLoad }

// Is lets errors.Is match on a specific reason.
func (e *InfeasibleLoadError) Is(target error) bool {
	other, ok := target.(*InfeasibleLoadError)
	return ok && other.Reason == e.Reason
}

func infeasible(r Reason) error {
	return &InfeasibleLoadError{Reason: r}
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
