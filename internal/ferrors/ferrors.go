// Package ferrors defines the deployment pipeline's structured error kinds
// (spec §7), following the teacher's own config.ConfigurationError pattern
// of an exported typed error struct plus sentinel-comparable Kind values,
// trimmed to the fields the pipeline actually needs: a Kind for policy
// dispatch (is this retryable? does it end the deployment?) and enough
// context to log without re-deriving it.
package ferrors

import "fmt"

// Kind enumerates the error kinds named in spec §7.
type Kind string

const (
	KindRecipeNotFound        Kind = "RecipeNotFound"
	KindArtifactDownloadFailed Kind = "ArtifactDownloadFailed"
	KindDigestMismatch        Kind = "DigestMismatch"
	KindDependencyConflict    Kind = "DependencyConflict"
	KindServiceUpdateError    Kind = "ServiceUpdateError"
	KindCancelled             Kind = "Cancelled"
	KindIoError               Kind = "IoError"
	KindConfigStoreError      Kind = "ConfigStoreError"
)

// Retryable reports whether §7 policy allows one bounded retry within a
// deployment before the error is escalated.
func (k Kind) Retryable() bool {
	switch k {
	case KindIoError, KindConfigStoreError, KindArtifactDownloadFailed:
		return true
	default:
		return false
	}
}

// TerminalNoStateChange reports whether this kind, if it surfaces from
// resolution, fails the deployment with FAILED_NO_STATE_CHANGE rather than
// triggering rollback handling (spec §7 first bullet).
func (k Kind) TerminalNoStateChange() bool {
	switch k {
	case KindRecipeNotFound, KindArtifactDownloadFailed, KindDigestMismatch, KindDependencyConflict:
		return true
	default:
		return false
	}
}

// Error is a structured, kind-tagged deployment error.
type Error struct {
	Kind      Kind
	Component string // component identifier string, empty if not component-scoped
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Component, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a kind-tagged error with no wrapped cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap constructs a kind-tagged error around an existing error.
func Wrap(kind Kind, component string, cause error, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// As reports whether err (or something in its chain) is a *Error of the
// given kind, returning it if so.
func As(err error, kind Kind) (*Error, bool) {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			if fe.Kind == kind {
				return fe, true
			}
			err = fe.Cause
			continue
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
