// Package apperr centralizes the error taxonomy shared by every component:
// session registry, chat storage, orchestrator, and the command layer that
// maps these down to short user-facing strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way spec §7 does, not by Go type.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindState
	KindIO
	KindStorage
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindIO:
		return "io"
	case KindStorage:
		return "storage"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and short operator message.
type Error struct {
	Kind    Kind
	Op      string // e.g. "session.create", "chatstore.save_message"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error without a wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an *Error around an existing cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Is reports whether err (or any error in its chain) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// UserMessage renders a short, user-safe string for the command layer —
// internal detail (Err) is never included; it belongs in the log sink only.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return fmt.Sprintf("%s: %s", ae.Kind, ae.Message)
	}
	return "internal error"
}

var (
	// Sentinel comparisons for common cases, so callers can use errors.Is
	// on the non-wrapped path too.
	ErrDuplicate  = New(KindConflict, "dispatch", "duplicate message id")
	ErrSkippedDnd = New(KindState, "dispatch", "member is do-not-disturb")
)
