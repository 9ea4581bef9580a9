package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWritesLabelledLines(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, true)

	c.Success("copied %d tabs", 3)
	c.Warning("port %d invalid", -1)
	c.Note("note")
	c.Error("boom")

	out := buf.String()
	assert.Contains(t, out, "[success] copied 3 tabs\n")
	assert.Contains(t, out, "[warning] port -1 invalid\n")
	assert.Contains(t, out, "[note] note\n")
	assert.Contains(t, out, "[error] boom\n")
	assert.True(t, c.Verbose())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(false)
	r.Warning("a")
	r.Warning("b")
	r.Note("c")

	require.Len(t, r.Messages(), 3)
	assert.Equal(t, 2, r.Count(LevelWarning))
	assert.Equal(t, 0, r.Count(LevelError))
	assert.Equal(t, Message{Level: LevelNote, Text: "c"}, r.Messages()[2])
	assert.False(t, r.Verbose())
}
