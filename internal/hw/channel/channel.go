// Package channel is the line based command transport to the winch motor
// controllers. Commands are ASCII lines; commands containing '?' are
// queries answered by exactly one line.
package channel

import (
	"errors"
	"strings"
)

// ErrCannotConnect is returned when the transport cannot be opened.
var ErrCannotConnect = errors.New("cannot connect to motor controller")

// Channel defines the request/response contract to the motor controllers.
// Implementations are not safe for concurrent use; callers serialize access.
type Channel interface {
	// Send writes cmd. For queries it returns the sanitized response line,
	// which is empty when nothing was received before the read timeout.
	// For other commands the response is always empty.
	Send(cmd string) (string, error)
	Close() error
}

// IsQuery reports whether cmd expects a response line.
func IsQuery(cmd string) bool {
	return strings.Contains(cmd, "?")
}

// Sanitize removes control characters and non printable bytes from a raw
// response line and trims surrounding blanks.
func Sanitize(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for _, c := range raw {
		if c >= 32 && c <= 126 {
			out = append(out, c)
		}
	}
	return strings.TrimSpace(string(out))
}

// IsInvalidResponse reports whether a query response must be treated as a
// failed attempt: no data, or the controller rejecting the command.
func IsInvalidResponse(resp string) bool {
	if resp == "" {
		return true
	}
	upper := strings.ToUpper(resp)
	return strings.HasPrefix(upper, "ERR") || strings.HasPrefix(upper, "INVALID")
}
