package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Runner executes host tools. Drivers and probes only talk to the host through it.
type Runner interface {
	// Output runs a short-lived command and returns its combined output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches a long-running command that lives until Stop.
	Start(name string, args ...string) (Process, error)
}

// Process is a background command started by a Runner
type Process interface {
	// Done is closed once the process has exited, for whatever reason.
	Done() <-chan struct{}
	Stop() error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	log zerolog.Logger
}

func NewExecRunner(log zerolog.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	r.log.Debug().Str("cmd", cmd.String()).Msg("executing")

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}

	return out, nil
}

func (r *ExecRunner) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	r.log.Debug().Str("cmd", cmd.String()).Msg("starting background process")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &execProcess{cmd: cmd, log: r.log, done: make(chan struct{})}
	go p.wait()

	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	log  zerolog.Logger
	done chan struct{}
	once sync.Once
	err  error
}

// wait reaps the process; it is the only caller of cmd.Wait
func (p *execProcess) wait() {
	err := p.cmd.Wait()
	p.log.Debug().Err(err).Int("pid", p.cmd.Process.Pid).Msg("background process exited")
	close(p.done)
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Stop() error {
	p.once.Do(func() {
		p.log.Debug().Int("pid", p.cmd.Process.Pid).Msg("stopping background process")

		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.err = fmt.Errorf("failed to kill %s: %w", p.cmd.Path, err)
			return
		}
		<-p.done
	})

	return p.err
}
