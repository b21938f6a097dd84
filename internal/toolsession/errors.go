package toolsession

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential is returned by Open when the subject has no stored
	// credential for the service.
	ErrNoCredential = errors.New("no credential for service")

	// ErrNotReady is returned when an operation is attempted on a session
	// that is not in the Ready state.
	ErrNotReady = errors.New("tool session not ready")

	// ErrUnknownService is returned when no tool server is defined for a
	// service.
	ErrUnknownService = errors.New("no tool server defined for service")
)

// SessionInitError reports a failure to start the tool process or to
// complete the protocol handshake.
type SessionInitError struct {
	Service string
	Err     error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("failed to open tool session for %s: %v", e.Service, e.Err)
}

func (e *SessionInitError) Unwrap() error {
	return e.Err
}

// ToolInvocationError reports a tool call that failed, either at the
// protocol level or because the tool itself returned an error result.
type ToolInvocationError struct {
	Tool   string
	Detail string
	Err    error
}

func (e *ToolInvocationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Detail)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}
