// Package errs defines the typed error kinds the engine's components
// raise across package boundaries (see spec §7 ERROR HANDLING DESIGN).
package errs

import "fmt"

// Kind tags an error with one of the engine's error categories so
// callers at the orchestrator boundary can decide how to react
// without string-matching messages.
type Kind int

const (
	// KindInvalidCandle marks an OHLC invariant violation at construction.
	KindInvalidCandle Kind = iota
	// KindInsufficientData marks a kernel that could not produce a value.
	KindInsufficientData
	// KindConfigError marks an out-of-range construction-time setting.
	KindConfigError
	// KindExternalUnavailable marks a history/top-of-book port failure.
	KindExternalUnavailable
	// KindMatcherInvariant marks an enriched signal with broken entry/SL/TP ordering.
	KindMatcherInvariant
	// KindStateCorruption marks an unexpected internal inconsistency.
	KindStateCorruption
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCandle:
		return "InvalidCandle"
	case KindInsufficientData:
		return "InsufficientData"
	case KindConfigError:
		return "ConfigError"
	case KindExternalUnavailable:
		return "ExternalUnavailable"
	case KindMatcherInvariant:
		return "MatcherInvariant"
	case KindStateCorruption:
		return "StateCorruption"
	default:
		return "Unknown"
	}
}

// Error is the engine's typed error. Build one around a cause with Wrap;
// Unwrap exposes that cause so errors.Is/errors.As keep working against
// the underlying error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a typed error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a typed *Error of the given kind.
func Is(err error, kind Kind) bool {
	te, ok := err.(*Error)
	return ok && te.Kind == kind
}
