package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection and server conditions.
var (
	// ErrConnectionClosed is returned when sending on a closed connection.
	ErrConnectionClosed = errors.New("server: connection closed")

	// ErrSendQueueFull is returned when a connection's outbound queue is
	// full and the frame was dropped.
	ErrSendQueueFull = errors.New("server: send queue full")

	// ErrUnknownConnection is returned for messages from an id the registry
	// does not know.
	ErrUnknownConnection = errors.New("server: unknown connection")
)

// ConnectionError wraps an error with connection context for debugging.
type ConnectionError struct {
	ConnID string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *ConnectionError) Error() string {
	if e.ConnID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: connection %s: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(connID, op string, err error) *ConnectionError {
	return &ConnectionError{
		ConnID: connID,
		Op:     op,
		Err:    err,
	}
}
