package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/kazuph/tab-transfer/internal/platform"
)

const proxyPortRange = 100

// ProxyOptions configures an ios_webkit_debug_proxy tunnel
type ProxyOptions struct {
	Port    int
	Timeout time.Duration

	// Poll is the interval between readiness checks on the local port.
	Poll time.Duration
}

// ProxyTunnel runs ios_webkit_debug_proxy, which multiplexes the inspector
// ports of attached iOS devices onto local TCP ports. The first device is
// mapped to Port, the device list to Port-1.
type ProxyTunnel struct {
	*endpoint
	runner platform.Runner
	tool   platform.Tool
	opts   ProxyOptions
	proc   platform.Process
}

// NewProxyTunnel creates a new proxy tunnel; the proxy starts on Open
func NewProxyTunnel(runner platform.Runner, opts ProxyOptions, log zerolog.Logger) *ProxyTunnel {
	if opts.Poll <= 0 {
		opts.Poll = 250 * time.Millisecond
	}

	return &ProxyTunnel{
		endpoint: newEndpoint(opts.Port, opts.Timeout, log),
		runner:   runner,
		tool:     platform.ProxyTool,
		opts:     opts,
	}
}

// portConfig is the -c argument: device list on port-1, devices from port on
func (c *ProxyTunnel) portConfig() string {
	devices := fmt.Sprintf(":%d-%d", c.opts.Port, c.opts.Port+proxyPortRange)
	if c.opts.Port <= 1 {
		return devices
	}

	return fmt.Sprintf("null:%d,%s", c.opts.Port-1, devices)
}

func (c *ProxyTunnel) Open(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}

	path, err := c.tool.Find()
	if err != nil {
		c.finish()
		return newError(SetupFailed, "open", err)
	}

	// Readiness is a plain dial, so anything already listening would pass it.
	if err := c.portFree(); err != nil {
		c.finish()
		return newError(SetupFailed, "open", err)
	}

	proc, err := c.runner.Start(path, "-F", "-c", c.portConfig())
	if err != nil {
		c.finish()
		return newError(SetupFailed, "open", err)
	}
	c.proc = proc

	if err := c.waitReady(ctx, proc); err != nil {
		_ = proc.Stop()
		c.finish()
		return err
	}

	c.setState(stateOpen)
	c.log.Debug().Str("addr", c.addr).Msg("webkit proxy tunnel active")

	return nil
}

// portFree fails when another service already holds the local port
func (c *ProxyTunnel) portFree() error {
	l, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("port in use: %s is held by another process: %w", c.addr, err)
	}

	return l.Close()
}

var errProxyExited = errors.New("ios_webkit_debug_proxy exited before it was ready")

// waitReady polls the local port until the proxy accepts connections
func (c *ProxyTunnel) waitReady(ctx context.Context, proc platform.Process) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.Poll)
	defer ticker.Stop()

	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-proc.Done():
			return newError(SetupFailed, "open", fmt.Errorf("%w; is another instance already running", errProxyExited))
		case <-ctx.Done():
			return newError(Timeout, "open", fmt.Errorf("ios_webkit_debug_proxy did not expose %s within %s; "+
				"is the device connected, unlocked and Web Inspector enabled: %w", c.addr, c.timeout, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (c *ProxyTunnel) Close() error {
	wasOpen := c.finish()
	if !wasOpen || c.proc == nil {
		return nil
	}

	proc := c.proc
	c.proc = nil

	if err := proc.Stop(); err != nil {
		return newError(SetupFailed, "close", err)
	}

	c.log.Debug().Msg("webkit proxy stopped")

	return nil
}
