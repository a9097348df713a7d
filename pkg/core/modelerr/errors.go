// Package modelerr defines the structured error taxonomy shared by the
// projection, debt, valuation, simulation and waterfall engines.
package modelerr

import (
	"errors"
	"fmt"
)

// Kind classifies a model failure.
type Kind string

const (
	InvalidAssumption         Kind = "INVALID_ASSUMPTION"
	InvalidConfiguration      Kind = "INVALID_CONFIGURATION"
	NumericInstability        Kind = "NUMERIC_INSTABILITY"
	SimulationDrawOutOfBounds Kind = "SIMULATION_DRAW_OUT_OF_BOUNDS"
)

// Sentinels for errors.Is checks. Matching is by Kind only.
var (
	ErrInvalidAssumption         = &Error{Kind: InvalidAssumption}
	ErrInvalidConfiguration      = &Error{Kind: InvalidConfiguration}
	ErrNumericInstability        = &Error{Kind: NumericInstability}
	ErrSimulationDrawOutOfBounds = &Error{Kind: SimulationDrawOutOfBounds}
)

// Error is a model failure naming the offending field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Assumption builds an INVALID_ASSUMPTION error.
func Assumption(field, format string, args ...any) *Error {
	return &Error{Kind: InvalidAssumption, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Configuration builds an INVALID_CONFIGURATION error.
func Configuration(field, format string, args ...any) *Error {
	return &Error{Kind: InvalidConfiguration, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Instability builds a NUMERIC_INSTABILITY error.
func Instability(field, format string, args ...any) *Error {
	return &Error{Kind: NumericInstability, Field: field, Message: fmt.Sprintf(format, args...)}
}

// OutOfBounds builds a SIMULATION_DRAW_OUT_OF_BOUNDS error. It is never
// fatal; the simulator records it per draw.
func OutOfBounds(field, format string, args ...any) *Error {
	return &Error{Kind: SimulationDrawOutOfBounds, Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// FieldOf returns the offending field of the first *Error in err's chain.
func FieldOf(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Field
	}
	return ""
}
