package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kazuph/tab-transfer/internal/platform"
)

// ADBOptions configures an adb port forward
type ADBOptions struct {
	Port    int
	Socket  string
	Timeout time.Duration
	// Serial targets one device; when empty USBOnly selects `-d`, otherwise
	// adb picks the only attached device.
	Serial  string
	USBOnly bool
}

// ADBForward forwards a local TCP port to an abstract socket on an Android device
type ADBForward struct {
	*endpoint
	runner platform.Runner
	tool   platform.Tool
	opts   ADBOptions
	path   string
}

// NewADBForward creates a new adb forward channel; nothing runs until Open
func NewADBForward(runner platform.Runner, opts ADBOptions, log zerolog.Logger) *ADBForward {
	return &ADBForward{
		endpoint: newEndpoint(opts.Port, opts.Timeout, log),
		runner:   runner,
		tool:     platform.ADBTool,
		opts:     opts,
	}
}

func (c *ADBForward) local() string {
	return fmt.Sprintf("tcp:%d", c.opts.Port)
}

func (c *ADBForward) remote() string {
	return "localabstract:" + c.opts.Socket
}

func (c *ADBForward) args(args ...string) []string {
	switch {
	case c.opts.Serial != "":
		return append([]string{"-s", c.opts.Serial}, args...)
	case c.opts.USBOnly:
		return append([]string{"-d"}, args...)
	default:
		return args
	}
}

func (c *ADBForward) Open(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}

	path, err := c.tool.Find()
	if err != nil {
		c.finish()
		return newError(SetupFailed, "open", err)
	}
	c.path = path

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.runner.Output(ctx, path, c.args("forward", c.local(), c.remote())...); err != nil {
		c.finish()
		return setupError(ctx, fmt.Errorf("failed to setup adb port forwarding: %w", err))
	}

	out, err := c.runner.Output(ctx, path, c.args("forward", "--list")...)
	if err != nil || !strings.Contains(string(out), c.local()+" "+c.remote()) {
		if rmErr := c.removeRule(); rmErr != nil {
			c.log.Warn().Err(rmErr).Str("local", c.local()).Msg("failed to clean up unverified adb forward")
		}
		c.finish()
		if err == nil {
			err = errors.New("forward rule not listed by adb")
		}
		return setupError(ctx, fmt.Errorf("adb port forwarding is not active: %w", err))
	}

	c.setState(stateOpen)
	c.log.Debug().Str("local", c.local()).Str("remote", c.remote()).Msg("adb forward active")

	return nil
}

func (c *ADBForward) Close() error {
	if !c.finish() {
		return nil
	}

	if err := c.removeRule(); err != nil {
		return newError(SetupFailed, "close", err)
	}

	c.log.Debug().Str("local", c.local()).Msg("adb forward removed")

	return nil
}

func (c *ADBForward) removeRule() error {
	ctx, cancel := context.WithTimeout(context.Background(), platform.ProbeTimeout)
	defer cancel()

	if _, err := c.runner.Output(ctx, c.path, c.args("forward", "--remove", c.local())...); err != nil {
		return fmt.Errorf("failed to remove adb port forwarding: %w", err)
	}

	return nil
}

func setupError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return newError(Timeout, "open", err)
	}

	return newError(SetupFailed, "open", err)
}
