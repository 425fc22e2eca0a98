// Package server defines shared request types, sentinel errors and utility
// helpers that are reused across client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
)

// broadcastRequest is the body accepted by the operator broadcast endpoint.
type broadcastRequest struct {
	Message string `json:"msg" validate:"required"`
}

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
