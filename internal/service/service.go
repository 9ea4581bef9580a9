// Package service runs a driver through a complete copy or reopen and turns
// its failures into a single error that names the stage they came from.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/console"
	"github.com/kazuph/tab-transfer/internal/driver"
	"github.com/kazuph/tab-transfer/internal/logger"
	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitEnvironment = 2
)

// ErrEnvironmentNotReady is wrapped by errors for a check that ran and failed
var ErrEnvironmentNotReady = errors.New("environment not ready")

// CopyTabsError is the one error a run reports
type CopyTabsError struct {
	Stage  driver.Stage
	Kind   driver.Kind
	Err    error
	Failed []driver.FailedRecord
}

func (e *CopyTabsError) Error() string {
	cause := e.Err
	var de *driver.Error
	if errors.As(cause, &de) {
		cause = de.Err
	}

	return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Kind, cause)
}

func (e *CopyTabsError) Unwrap() error {
	return e.Err
}

// ExitCode maps a run error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrEnvironmentNotReady):
		return ExitEnvironment
	default:
		return ExitFailure
	}
}

// CopyTabsService drives one driver through a run
type CopyTabsService struct {
	skipCheck bool
	out       console.Output
	log       zerolog.Logger
}

// New creates a new service for one run with the resolved configuration
func New(cfg config.DriverConfig, out console.Output) *CopyTabsService {
	return &CopyTabsService{
		skipCheck: cfg.SkipCheck,
		out:       out,
		log:       logger.WithComponent("service"),
	}
}

// Check runs only the environment check of drv
func (s *CopyTabsService) Check(ctx context.Context, drv driver.Driver) (platform.CheckResult, error) {
	res, err := drv.CheckEnvironment(ctx)
	if err != nil {
		return res, wrap(driver.StageEnvironment, err)
	}

	if !res.OK {
		return res, &CopyTabsError{
			Stage: driver.StageEnvironment,
			Kind:  driver.EnvironmentCheckFailed,
			Err:   fmt.Errorf("%w: %s", ErrEnvironmentNotReady, res.Detail),
		}
	}

	return res, nil
}

func (s *CopyTabsService) precheck(ctx context.Context, drv driver.Driver) error {
	if s.skipCheck {
		s.log.Debug().Str("driver", drv.Name()).Msg("environment check skipped")
		if s.out.Verbose() {
			s.out.Note("Skipping environment check.")
		}
		return nil
	}

	res, err := s.Check(ctx, drv)
	if err != nil {
		return err
	}

	if s.out.Verbose() {
		s.out.Note("Environment OK: %s", res.Detail)
	}

	return nil
}

// Run copies the tab list of the device behind drv
func (s *CopyTabsService) Run(ctx context.Context, drv driver.Driver) ([]tabs.Record, error) {
	if err := s.precheck(ctx, drv); err != nil {
		return nil, err
	}

	records, err := drv.FetchTabs(ctx, s.out)
	if err != nil {
		return nil, wrap(driver.StageFetch, err)
	}

	s.log.Info().Str("driver", drv.Name()).Int("tabs", len(records)).Msg("tabs copied")

	return records, nil
}

// Reopen opens records on the device behind drv. On partial failure the
// result still lists what was opened.
func (s *CopyTabsService) Reopen(ctx context.Context, drv driver.Driver, records []tabs.Record) (driver.ReopenResult, error) {
	if err := s.precheck(ctx, drv); err != nil {
		return driver.ReopenResult{}, err
	}

	result, err := drv.ReopenTabs(ctx, records, s.out)
	if err != nil {
		return result, wrap(driver.StageReopen, err)
	}

	s.log.Info().Str("driver", drv.Name()).Int("tabs", len(result.Opened)).Msg("tabs reopened")

	return result, nil
}

// wrap turns a driver error into a CopyTabsError, keeping its stage and kind
func wrap(stage driver.Stage, err error) error {
	var de *driver.Error
	if !errors.As(err, &de) {
		return &CopyTabsError{Stage: stage, Kind: driver.ConnectionFailed, Err: err}
	}

	return &CopyTabsError{Stage: de.Stage, Kind: de.Kind, Err: err, Failed: de.Failed}
}
