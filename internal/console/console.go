// Package console is the user-facing message sink used by commands and
// drivers. Structured diagnostics go through the logger instead.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level classifies a console message
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
	LevelError   Level = "error"
)

// Output receives progress and result messages
type Output interface {
	Success(format string, args ...any)
	Warning(format string, args ...any)
	Note(format string, args ...any)
	Error(format string, args ...any)
	// Verbose reports whether progress notes should be written at all.
	Verbose() bool
}

// Console writes styled messages to a writer
type Console struct {
	w       io.Writer
	verbose bool
	styles  map[Level]lipgloss.Style
}

// New creates a console writing to w. Colors are dropped automatically when w
// is not a terminal.
func New(w io.Writer, verbose bool) *Console {
	r := lipgloss.NewRenderer(w)

	return &Console{
		w:       w,
		verbose: verbose,
		styles: map[Level]lipgloss.Style{
			LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			LevelWarning: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
			LevelNote:    r.NewStyle().Foreground(lipgloss.Color("12")),
			LevelError:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		},
	}
}

func (c *Console) Success(format string, args ...any) { c.print(LevelSuccess, format, args...) }
func (c *Console) Warning(format string, args ...any) { c.print(LevelWarning, format, args...) }
func (c *Console) Note(format string, args ...any)    { c.print(LevelNote, format, args...) }
func (c *Console) Error(format string, args ...any)   { c.print(LevelError, format, args...) }

func (c *Console) Verbose() bool {
	return c.verbose
}

func (c *Console) print(level Level, format string, args ...any) {
	label := c.styles[level].Render("[" + string(level) + "]")
	fmt.Fprintf(c.w, "%s %s\n", label, fmt.Sprintf(format, args...))
}

// Message is one recorded console line
type Message struct {
	Level Level
	Text  string
}

// Recorder is an Output that keeps messages in memory
type Recorder struct {
	mu       sync.Mutex
	verbose  bool
	messages []Message
}

func NewRecorder(verbose bool) *Recorder {
	return &Recorder{verbose: verbose}
}

func (r *Recorder) Success(format string, args ...any) { r.add(LevelSuccess, format, args...) }
func (r *Recorder) Warning(format string, args ...any) { r.add(LevelWarning, format, args...) }
func (r *Recorder) Note(format string, args ...any)    { r.add(LevelNote, format, args...) }
func (r *Recorder) Error(format string, args ...any)   { r.add(LevelError, format, args...) }

func (r *Recorder) Verbose() bool {
	return r.verbose
}

func (r *Recorder) add(level Level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Message(nil), r.messages...)
}

// Count returns how many messages of the given level were recorded
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, m := range r.Messages() {
		if m.Level == level {
			n++
		}
	}

	return n
}

// Discard returns an Output that drops everything
func Discard() Output {
	return New(io.Discard, false)
}
