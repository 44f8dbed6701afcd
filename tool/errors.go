package tool

import "fmt"

// ErrorKind classifies tool failures.
type ErrorKind int

const (
	// InvalidInput means the arguments did not decode or validate. The tool
	// body never ran.
	InvalidInput ErrorKind = iota
	// ExecutionError means the tool ran and failed.
	ExecutionError
	// PermissionDenied means the approval was rejected. The tool body never
	// ran.
	PermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case PermissionDenied:
		return "permission denied"
	default:
		return "execution error"
	}
}

// Error is a failed tool call. Its rendered text is what the model sees as
// the call's result, so reasons should be written for the model, not for a
// stack trace.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Kind.String()
}

// Invalidf builds an InvalidInput failure.
func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: InvalidInput, Reason: fmt.Sprintf(format, args...)}
}

// Failf builds an ExecutionError failure.
func Failf(format string, args ...any) *Error {
	return &Error{Kind: ExecutionError, Reason: fmt.Sprintf(format, args...)}
}

// Denied builds a PermissionDenied failure. An empty reason renders as the
// kind's canonical text.
func Denied(reason string) *Error {
	return &Error{Kind: PermissionDenied, Reason: reason}
}
