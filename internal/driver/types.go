package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/kazuph/tab-transfer/internal/console"
	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

// Driver copies tabs from, and reopens tabs on, one class of device.
// A driver is single use: create a fresh one for every run.
type Driver interface {
	Name() string
	// CheckEnvironment runs the advisory probe for this device class.
	CheckEnvironment(ctx context.Context) (platform.CheckResult, error)
	// FetchTabs opens the channel, reads the tab list and closes the channel.
	FetchTabs(ctx context.Context, out console.Output) ([]tabs.Record, error)
	// ReopenTabs opens every record on the device, continuing past failures.
	ReopenTabs(ctx context.Context, records []tabs.Record, out console.Output) (ReopenResult, error)
	State() State
}

// State is a driver lifecycle state
type State int

const (
	StateIdle State = iota
	StateEnvironmentChecked
	StateConnected
	StateFetched
	StateReopened
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnvironmentChecked:
		return "environment checked"
	case StateConnected:
		return "connected"
	case StateFetched:
		return "fetched"
	case StateReopened:
		return "reopened"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind classifies driver failures
type Kind int

const (
	EnvironmentCheckFailed Kind = iota + 1
	ConnectionFailed
	Timeout
	ProtocolError
	PartialReopenFailure
)

func (k Kind) String() string {
	switch k {
	case EnvironmentCheckFailed:
		return "environment check failed"
	case ConnectionFailed:
		return "connection failed"
	case Timeout:
		return "timeout"
	case ProtocolError:
		return "protocol error"
	case PartialReopenFailure:
		return "partial reopen failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage names the step of a run an error originated in
type Stage string

const (
	StageEnvironment Stage = "environment check"
	StageConnect     Stage = "connect"
	StageFetch       Stage = "fetch"
	StageReopen      Stage = "reopen"
	StageClose       Stage = "close"
)

// ErrDriverUsed is returned when a driver is asked to run a second time
var ErrDriverUsed = errors.New("driver already used")

// FailedRecord is a record that could not be reopened
type FailedRecord struct {
	Record tabs.Record
	Err    error
}

// ReopenResult reports the outcome of every record of a reopen run
type ReopenResult struct {
	Opened []tabs.Record
	Failed []FailedRecord
}

// Error is a classified driver failure
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
	// Failed lists the records that could not be reopened (PartialReopenFailure only).
	Failed []FailedRecord
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the driver error kind from err, if any
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}

	return 0, false
}
