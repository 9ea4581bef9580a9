package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/console"
	"github.com/kazuph/tab-transfer/internal/loader"
	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

// restorerFunc attaches a tab restorer to an open channel
type restorerFunc func(ctx context.Context, ch channel.Channel) (loader.Restorer, error)

// machine is the lifecycle shared by every variant. Variants only decide
// which probe, channel, list path and restorer to use.
type machine struct {
	name       string
	cfg        config.DriverConfig
	probe      platform.Probe
	newChannel func() channel.Channel
	listPath   string
	restorer   restorerFunc
	limiter    *rate.Limiter
	log        zerolog.Logger

	state   State
	failure Kind
}

func (m *machine) Name() string {
	return m.name
}

func (m *machine) State() State {
	return m.state
}

// Failure returns the kind that moved the driver into StateFailed
func (m *machine) Failure() Kind {
	return m.failure
}

func (m *machine) fail(stage Stage, kind Kind, err error) *Error {
	m.state = StateFailed
	m.failure = kind
	m.log.Debug().Err(err).Str("stage", string(stage)).Str("kind", kind.String()).Msg("driver failed")

	return &Error{Kind: kind, Stage: stage, Err: err}
}

// CheckEnvironment only advances the state when the check passes; a failed
// check leaves the driver idle so the caller decides whether to go on.
func (m *machine) CheckEnvironment(ctx context.Context) (platform.CheckResult, error) {
	if m.state != StateIdle && m.state != StateEnvironmentChecked {
		return platform.CheckResult{}, fmt.Errorf("%s driver in state %s: %w", m.name, m.state, ErrDriverUsed)
	}

	res, err := m.probe.Check(ctx)
	if err != nil {
		return platform.CheckResult{}, m.fail(StageEnvironment, EnvironmentCheckFailed, err)
	}

	m.log.Debug().Bool("ok", res.OK).Str("detail", res.Detail).Msg("environment checked")

	if res.OK {
		m.state = StateEnvironmentChecked
	}

	return res, nil
}

func (m *machine) connect(ctx context.Context, out console.Output) (channel.Channel, error) {
	if m.state != StateIdle && m.state != StateEnvironmentChecked {
		return nil, fmt.Errorf("%s driver in state %s: %w", m.name, m.state, ErrDriverUsed)
	}

	if out.Verbose() {
		out.Note("Connecting to %s device on port %d...", m.name, m.cfg.Port)
	}

	ch := m.newChannel()
	if err := ch.Open(ctx); err != nil {
		return nil, m.fail(StageConnect, ConnectionFailed, err)
	}

	m.state = StateConnected

	return ch, nil
}

// release closes ch and folds a close failure into *errp
func (m *machine) release(ch channel.Channel, errp *error) {
	if closeErr := ch.Close(); closeErr != nil {
		if *errp == nil {
			*errp = m.fail(StageClose, ConnectionFailed, closeErr)
			return
		}
		m.log.Warn().Err(closeErr).Msg("failed to close channel after error")
		return
	}

	if m.state != StateFailed {
		m.state = StateClosed
	}
}

func (m *machine) FetchTabs(ctx context.Context, out console.Output) (records []tabs.Record, err error) {
	ch, err := m.connect(ctx, out)
	if err != nil {
		return nil, err
	}
	defer m.release(ch, &err)

	if out.Verbose() {
		out.Note("Requesting tab list from %s%s...", ch.Addr(), m.listPath)
	}

	records, err = loader.NewHTTPTabLoader(ch, m.listPath, m.log).LoadTabs(ctx)
	if err != nil {
		return nil, m.fail(StageFetch, fetchKind(err), err)
	}

	m.state = StateFetched

	if out.Verbose() {
		out.Note("Received %d tabs.", len(records))
	}

	return records, nil
}

func (m *machine) ReopenTabs(ctx context.Context, records []tabs.Record, out console.Output) (result ReopenResult, err error) {
	ch, err := m.connect(ctx, out)
	if err != nil {
		return ReopenResult{}, err
	}
	defer m.release(ch, &err)

	restorer, err := m.restorer(ctx, ch)
	if err != nil {
		return ReopenResult{}, m.fail(StageReopen, fetchKind(err), err)
	}
	defer func() {
		if cerr := restorer.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Msg("failed to close restorer")
		}
	}()

	for i, record := range records {
		if err := m.reopenOne(ctx, restorer, record); err != nil {
			out.Warning("Could not open tab %d (%s): %v", i+1, record.URL, err)
			result.Failed = append(result.Failed, FailedRecord{Record: record, Err: err})
			continue
		}

		result.Opened = append(result.Opened, record)
		if out.Verbose() {
			out.Note("Opened tab %d: %s", i+1, record)
		}
	}

	m.state = StateReopened

	if len(result.Failed) > 0 {
		return result, &Error{
			Kind:   PartialReopenFailure,
			Stage:  StageReopen,
			Err:    fmt.Errorf("%d of %d tabs could not be opened", len(result.Failed), len(records)),
			Failed: result.Failed,
		}
	}

	return result, nil
}

func (m *machine) reopenOne(ctx context.Context, restorer loader.Restorer, record tabs.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	return restorer.Restore(ctx, record)
}

// fetchKind classifies an error raised after the channel was opened
func fetchKind(err error) Kind {
	if errors.Is(err, loader.ErrMalformed) || errors.Is(err, loader.ErrNoTarget) {
		return ProtocolError
	}

	if kind, ok := channel.KindOf(err); ok && kind == channel.Timeout {
		return Timeout
	}

	return ConnectionFailed
}
