// Package channel tunnels a local TCP port to a device's debugging endpoint.
//
// A Channel is single use: Open establishes the tunnel, Request and Stream
// talk to the endpoint over it, and Close tears it down. Once closed a
// channel cannot be reopened.
package channel

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies channel failures
type Kind int

const (
	// SetupFailed means the tool or daemon is unavailable or the device was not found.
	SetupFailed Kind = iota + 1
	// Timeout means no response arrived within the configured budget.
	Timeout
	// Unreachable means the tunnel exists but the endpoint refused, reset or answered with an error status.
	Unreachable
	// Closed means the operation was attempted on a channel that is not open.
	Closed
)

func (k Kind) String() string {
	switch k {
	case SetupFailed:
		return "setup failed"
	case Timeout:
		return "timeout"
	case Unreachable:
		return "unreachable"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Channel operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the channel error kind from err, if any
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}

	return 0, false
}

// Stream is a message-oriented connection opened over the channel
type Stream interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Channel is one tunnel to a device debugging endpoint
type Channel interface {
	// Open establishes the tunnel and confirms it is active.
	Open(ctx context.Context) error
	// Request performs a single HTTP request against path. It never retries.
	Request(ctx context.Context, method, path string) ([]byte, error)
	// Stream opens a websocket; target is either a ws:// URL or a path.
	Stream(ctx context.Context, target string) (Stream, error)
	// Addr is the local host:port of the tunnel.
	Addr() string
	// Close releases the tunnel. It is safe to call more than once.
	Close() error
}
