package interfaces

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes stage and provider failures.
type ErrorKind string

const (
	// ErrorKindValidation marks bad input shape, rejected before any stage runs.
	ErrorKindValidation ErrorKind = "ValidationError"

	// ErrorKindProviderTransient marks timeout/connection/rate-limit provider
	// failures that are retried with backoff.
	ErrorKindProviderTransient ErrorKind = "ProviderTransientError"

	// ErrorKindProviderFatal marks auth/bad-request provider failures that are
	// never retried.
	ErrorKindProviderFatal ErrorKind = "ProviderFatalError"

	// ErrorKindStore marks memory read/write failures, absorbed as
	// best-effort and never fatal to the turn.
	ErrorKindStore ErrorKind = "StoreError"

	// ErrorKindUnhandled marks faults caught at the agent-contract boundary.
	ErrorKindUnhandled ErrorKind = "UnhandledError"
)

// AgentError is a structured stage failure.
type AgentError struct {
	Agent   AgentName // stage that produced the failure
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Agent != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Agent, msg, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", msg, e.Kind)
}

// Unwrap returns the underlying error.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure might succeed on retry.
func (e *AgentError) Retryable() bool {
	return e.Kind == ErrorKindProviderTransient
}

// NewAgentError creates a structured stage failure.
func NewAgentError(agent AgentName, kind ErrorKind, message string, cause error) *AgentError {
	return &AgentError{Agent: agent, Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind from err, returning ErrorKindUnhandled for
// errors that carry no classification.
func KindOf(err error) ErrorKind {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	return ErrorKindUnhandled
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	return KindOf(err) == ErrorKindProviderTransient
}
