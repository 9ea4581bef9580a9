package platform

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found")
	}

	return path
}

func waitDone(t *testing.T, proc Process) {
	t.Helper()

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never reported exit")
	}
}

func TestExecProcessStopAfterExit(t *testing.T) {
	sh := shell(t)
	proc, err := NewExecRunner(zerolog.Nop()).Start(sh, "-c", "exit 0")
	require.NoError(t, err)

	waitDone(t, proc)

	// Already reaped: stopping is a no-op, not an error.
	assert.NoError(t, proc.Stop())
	assert.NoError(t, proc.Stop())
}

func TestExecProcessStopKillsAndReaps(t *testing.T) {
	sh := shell(t)
	proc, err := NewExecRunner(zerolog.Nop()).Start(sh, "-c", "sleep 30")
	require.NoError(t, err)

	select {
	case <-proc.Done():
		t.Fatal("process exited before Stop")
	default:
	}

	require.NoError(t, proc.Stop())
	waitDone(t, proc)
	assert.NoError(t, proc.Stop())
}

func TestExecRunnerOutput(t *testing.T) {
	sh := shell(t)
	r := NewExecRunner(zerolog.Nop())

	out, err := r.Output(context.Background(), sh, "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = r.Output(context.Background(), sh, "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestExecRunnerStartMissingBinary(t *testing.T) {
	_, err := NewExecRunner(zerolog.Nop()).Start("/nonexistent/tab-transfer-tool")
	assert.Error(t, err)
}
