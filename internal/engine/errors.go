package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/flame/internal/ir"
)

// RuntimeError is an error raised by the dispatcher itself, as opposed to
// a backend failure (api.StatusError).
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Op is the intent op involved, when there is one.
	Op ir.Op

	// FlowToken identifies the affected flow.
	FlowToken string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownIntent indicates an intent type with no handler.
	ErrCodeUnknownIntent RuntimeErrorCode = "UNKNOWN_INTENT"

	// ErrCodeNoRoute indicates a remote op missing from the catalog.
	ErrCodeNoRoute RuntimeErrorCode = "NO_ROUTE"

	// ErrCodeStepsExceeded indicates a flow exceeded max steps.
	ErrCodeStepsExceeded RuntimeErrorCode = "STEPS_EXCEEDED"

	// ErrCodeSuperseded indicates a newer dispatch of the same op won.
	ErrCodeSuperseded RuntimeErrorCode = "SUPERSEDED"

	// ErrCodeClosed indicates a dispatch after Close.
	ErrCodeClosed RuntimeErrorCode = "DISPATCHER_CLOSED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.FlowToken != "" && e.Op != "":
		return fmt.Sprintf("%s: %s (flow=%s, op=%s)", e.Code, e.Message, e.FlowToken, e.Op)
	case e.Op != "":
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	case e.FlowToken != "":
		return fmt.Sprintf("%s: %s (flow=%s)", e.Code, e.Message, e.FlowToken)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsSuperseded reports a latest-wins task that lost to a newer dispatch.
func IsSuperseded(err error) bool {
	return hasCode(err, ErrCodeSuperseded)
}

// IsClosed reports a dispatch refused because the dispatcher was closed.
func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

// IsNoRoute reports a remote op the catalog does not route.
func IsNoRoute(err error) bool {
	return hasCode(err, ErrCodeNoRoute)
}

// IsStepsExceeded matches both RuntimeError with ErrCodeStepsExceeded and
// StepsExceededError.
func IsStepsExceeded(err error) bool {
	if hasCode(err, ErrCodeStepsExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

func newSupersededError(op ir.Op, flowToken string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeSuperseded,
		Message:   "a newer dispatch of this op is in flight",
		Op:        op,
		FlowToken: flowToken,
	}
}

func newClosedError(op ir.Op) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeClosed,
		Message: "dispatcher is closed",
		Op:      op,
	}
}

func newNoRouteError(op ir.Op, catalogName string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoRoute,
		Message: "catalog declares no route",
		Op:      op,
		Details: map[string]string{"catalog": catalogName},
	}
}

func newUnknownIntentError(in ir.Intent) *RuntimeError {
	if in == nil {
		return &RuntimeError{Code: ErrCodeUnknownIntent, Message: "nil intent"}
	}
	return &RuntimeError{
		Code:    ErrCodeUnknownIntent,
		Message: fmt.Sprintf("no handler for %T", in),
		Op:      in.Op(),
	}
}
