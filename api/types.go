// types.go - Core API Types (Errors, Server-Status)
// Enthaelt: StatusError, CompileError, RuntimeError, DecodeError, StartupError, ServerStatus
package api

import (
	"errors"
	"fmt"
)

var (
	// ErrContextMismatch is returned when a node references a handle that was
	// created by a different execution context.
	ErrContextMismatch = errors.New("handle belongs to a different context")

	// ErrContextClosed is returned by every operation on a closed context.
	ErrContextClosed = errors.New("context closed")

	// ErrBackendFault marks an unrecoverable protocol failure. The context
	// that observed it must be closed and reopened.
	ErrBackendFault = errors.New("backend fault")

	// ErrOutcomeUnknown marks a submission that was cancelled after it was
	// sent. The engine may or may not have run it.
	ErrOutcomeUnknown = errors.New("submission outcome unknown")
)

// StatusError is an error with an HTTP status code and message, as returned
// by the engine.
type StatusError struct {
	StatusCode   int    `json:"-"`
	Status       string `json:"-"`
	ErrorMessage string `json:"error"`

	// Statement is the index of the failing statement, if any.
	Statement *int   `json:"statement,omitempty"`
	Op        string `json:"op,omitempty"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the engine logs for details"
	}
}

// CompileError reports a malformed graph: a dangling reference or a
// zero-output operator used as a value.
type CompileError struct {
	NodeID uint64
	Op     string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s (node %d): %s", e.Op, e.NodeID, e.Reason)
}

// RuntimeError is an operator-level failure reported by the engine. It
// aborts the submission it occurred in and nothing else.
type RuntimeError struct {
	Op        string
	NodeID    uint64
	Statement int
	Message   string
}

func (e *RuntimeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("runtime error in statement %d: %s", e.Statement, e.Message)
	}
	return fmt.Sprintf("runtime error in statement %d (%s, node %d): %s", e.Statement, e.Op, e.NodeID, e.Message)
}

// DecodeError reports a payload that does not match the declared output
// type of the node it belongs to.
type DecodeError struct {
	Output   string
	Expected string
	Got      string
	Reason   string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s: expected %s, got %s", e.Output, e.Expected, e.Got)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// StartupError is returned when the engine cannot be reached within the
// configured startup timeout.
type StartupError struct {
	Err error
	// Msg is the last error line the engine printed, if any.
	Msg string
}

func (e *StartupError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("engine startup failed: %v: %s", e.Err, e.Msg)
	}
	return fmt.Sprintf("engine startup failed: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ServerStatus repräsentiert den aktuellen Zustand der Engine
type ServerStatus int

const (
	ServerStatusReady ServerStatus = iota
	ServerStatusBusy
	ServerStatusLaunched
	ServerStatusNotResponding
	ServerStatusError
)

func (s ServerStatus) String() string {
	switch s {
	case ServerStatusReady:
		return "engine ready"
	case ServerStatusBusy:
		return "engine busy"
	case ServerStatusLaunched:
		return "engine launched"
	case ServerStatusNotResponding:
		return "engine not responding"
	default:
		return "engine error"
	}
}

// ServerStatusResponse ist die Antwort vom Health-Endpoint
type ServerStatusResponse struct {
	Status ServerStatus `json:"status"`
	// Variables is the number of bindings held by the engine.
	Variables int `json:"variables"`
}
