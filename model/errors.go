package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures coarsely enough for retry policy.
type ErrorKind int

const (
	// KindOther covers transport faults, malformed responses and anything
	// else without a sharper classification.
	KindOther ErrorKind = iota
	// KindModerated means the provider refused the content. Deterministic;
	// retrying the same request will fail again.
	KindModerated
	// KindRateLimited means the provider pushed back on volume.
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindModerated:
		return "moderated"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error of the given kind from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Kind extracts the classification from an error chain. Errors that don't
// carry a model.Error anywhere report KindOther.
func Kind(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindOther
}
