package connection

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrNotConfigured means no database URI is set; no handshake is tried.
	ErrNotConfigured = errors.New("database URI is not configured")

	// ErrBackoff means the retry policy refused to start a handshake.
	ErrBackoff = errors.New("database handshake suppressed by retry policy")

	// ErrClosed means the manager was closed while the handshake ran; the
	// new connection was disconnected instead of cached.
	ErrClosed = errors.New("database connection manager closed during handshake")
)

// FailureKind categorizes a failed handshake for operators.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureNetwork
	FailureAuthentication
	FailureTimeout
	FailureConfiguration
)

// String returns the name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureAuthentication:
		return "authentication"
	case FailureTimeout:
		return "timeout"
	case FailureConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Hint is the operator advice logged next to a failure of this kind.
func (k FailureKind) Hint() string {
	switch k {
	case FailureNetwork, FailureTimeout:
		return "Check that this host's IP address is on the database network access list (allowlist), and that the database is reachable."
	case FailureAuthentication:
		return "Check the user name and password in the database URI and the user's roles on the target database."
	case FailureConfiguration:
		return "Check the database URI format and scheme."
	default:
		return ""
	}
}

// HandshakeError is a handshake failure already classified by a dialer.
type HandshakeError struct {
	Kind FailureKind
	Err  error
}

func (e *HandshakeError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Classify returns the failure kind of a handshake error. Dialer
// classifications take precedence; otherwise the error chain and message
// are inspected.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	var hsErr *HandshakeError
	if errors.As(err, &hsErr) {
		return hsErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "auth failed"), strings.Contains(msg, "unauthorized"):
		return FailureAuthentication
	case strings.Contains(msg, "whitelist"), strings.Contains(msg, "allowlist"), strings.Contains(msg, " ip "),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return FailureNetwork
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return FailureTimeout
	}
	return FailureUnknown
}
