package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure. Kinds travel with the evidence
// trail so a stored resolution can be audited without the original logs.
type ErrorKind string

const (
	KindProviderSkipped       ErrorKind = "provider_skipped"
	KindProviderFailure       ErrorKind = "provider_failure"
	KindCircuitOpen           ErrorKind = "circuit_open"
	KindClassificationFailure ErrorKind = "classification_failure"
	KindInsufficientConsensus ErrorKind = "insufficient_consensus"
	KindLLMMismatch           ErrorKind = "llm_mismatch"
	KindLLMFailure            ErrorKind = "llm_failure"
)

// ResolutionError tags an error with its kind and the provider it came from.
type ResolutionError struct {
	Kind     ErrorKind
	Provider string
	Detail   string
	Err      error
}

func (e *ResolutionError) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg += ": " + e.Provider
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NewError builds a ResolutionError with a formatted detail message.
func NewError(kind ErrorKind, provider, format string, args ...any) *ResolutionError {
	return &ResolutionError{Kind: kind, Provider: provider, Detail: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and provider to an underlying error.
func WrapError(kind ErrorKind, provider string, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Provider: provider, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }
