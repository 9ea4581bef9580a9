// Package platformtest provides a scripted platform.Runner for tests.
package platformtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kazuph/tab-transfer/internal/platform"
)

// Call records one command issued through the runner
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return strings.Join(c.Args, " ")
}

type response struct {
	out string
	err error
}

// Runner answers commands from a script keyed by their joined arguments
type Runner struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []Call

	StartErr error

	// OnStart runs for every successful Start, before the process is returned.
	OnStart func(name string, args ...string)

	// Exits makes started processes report that they exited straight away.
	Exits bool

	started int
	stopped int
}

func NewRunner() *Runner {
	return &Runner{responses: make(map[string]response)}
}

// On scripts the output for a command whose arguments join to args
func (r *Runner) On(args, out string, err error) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.responses[args] = response{out: out, err: err}
	return r
}

func (r *Runner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: args}
	r.calls = append(r.calls, call)

	resp, ok := r.responses[call.String()]
	if !ok {
		return nil, fmt.Errorf("unexpected command: %s %s", filepath.Base(name), call)
	}

	return []byte(resp.out), resp.err
}

func (r *Runner) Start(name string, args ...string) (platform.Process, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: args})
	if r.StartErr != nil {
		r.mu.Unlock()
		return nil, r.StartErr
	}

	r.started++
	p := &process{runner: r, done: make(chan struct{})}
	if r.Exits {
		p.exit()
	}
	hook := r.OnStart
	r.mu.Unlock()

	if hook != nil {
		hook(name, args...)
	}

	return p, nil
}

// Calls returns every command issued so far
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Call(nil), r.calls...)
}

// Ran reports whether a command with the given joined arguments was issued
func (r *Runner) Ran(args string) bool {
	for _, c := range r.Calls() {
		if c.String() == args {
			return true
		}
	}

	return false
}

// Processes returns how many background processes were started and stopped
func (r *Runner) Processes() (started, stopped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.started, r.stopped
}

type process struct {
	runner *Runner
	done   chan struct{}
	exited sync.Once
	once   sync.Once
}

func (p *process) exit() {
	p.exited.Do(func() { close(p.done) })
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Stop() error {
	p.once.Do(func() {
		p.runner.mu.Lock()
		p.runner.stopped++
		p.runner.mu.Unlock()
		p.exit()
	})

	return nil
}

// Executable creates an empty executable file and points envVar at it
func Executable(t testing.TB, envVar, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to create fake %s: %v", name, err)
	}

	if envVar != "" {
		t.Setenv(envVar, path)
	}

	return path
}
