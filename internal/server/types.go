// Package server defines the transport errors and utility helpers that are
// reused across client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrConnectionClosed is returned when delivering to a connection whose
	// send queue has been closed.
	ErrConnectionClosed = errors.New("server: connection closed")
	// ErrSendBufferFull is returned when a connection's send queue is full.
	ErrSendBufferFull = errors.New("server: send buffer full")
	// ErrHubClosed is returned when registering with a hub that has shut down.
	ErrHubClosed = errors.New("server: hub is shut down")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
