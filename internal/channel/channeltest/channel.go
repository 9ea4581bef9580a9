// Package channeltest provides an in-memory channel.Channel for tests.
package channeltest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kazuph/tab-transfer/internal/channel"
)

type response struct {
	body string
	err  error
}

// Channel is a scripted channel that counts its lifecycle calls
type Channel struct {
	mu        sync.Mutex
	responses map[string]response
	requests  []string
	open      bool
	opens     int
	closes    int

	OpenErr  error
	CloseErr error
	// StreamFn answers Stream; nil makes Stream fail as unreachable.
	StreamFn func(target string) (channel.Stream, error)
}

func New() *Channel {
	return &Channel{responses: make(map[string]response)}
}

// On scripts the answer for method and path
func (c *Channel) On(method, path, body string, err error) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses[method+" "+path] = response{body: body, err: err}
	return c
}

func (c *Channel) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opens++
	if c.OpenErr != nil {
		return c.OpenErr
	}
	c.open = true

	return nil
}

func (c *Channel) Request(_ context.Context, method, path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, &channel.Error{Kind: channel.Closed, Op: "request"}
	}

	key := method + " " + path
	c.requests = append(c.requests, key)

	resp, ok := c.responses[key]
	if !ok {
		return nil, &channel.Error{Kind: channel.Unreachable, Op: "request", Err: fmt.Errorf("no route for %s", key)}
	}
	if resp.err != nil {
		return nil, resp.err
	}

	return []byte(resp.body), nil
}

func (c *Channel) Stream(_ context.Context, target string) (channel.Stream, error) {
	c.mu.Lock()
	open := c.open
	fn := c.StreamFn
	c.mu.Unlock()

	if !open {
		return nil, &channel.Error{Kind: channel.Closed, Op: "stream"}
	}
	if fn == nil {
		return nil, &channel.Error{Kind: channel.Unreachable, Op: "stream", Err: errors.New("streams not scripted")}
	}

	return fn(target)
}

func (c *Channel) Addr() string {
	return "127.0.0.1:0"
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closes++
	c.open = false

	return c.CloseErr
}

// Opens returns how many times Open was called
func (c *Channel) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.opens
}

// Closes returns how many times Close was called
func (c *Channel) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closes
}

// Requests returns the "METHOD path" of every request issued
func (c *Channel) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.requests...)
}

// Stream is a scripted inspector connection. Reply computes the messages
// queued in answer to each written command.
type Stream struct {
	mu     sync.Mutex
	sent   []map[string]any
	queue  [][]byte
	closed bool

	Reply func(cmd map[string]any) []any
}

func (s *Stream) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var cmd map[string]any
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &channel.Error{Kind: channel.Closed, Op: "write"}
	}
	s.sent = append(s.sent, cmd)

	if s.Reply != nil {
		for _, r := range s.Reply(cmd) {
			out, err := json.Marshal(r)
			if err != nil {
				return err
			}
			s.queue = append(s.queue, out)
		}
	}

	return nil
}

func (s *Stream) ReadJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return &channel.Error{Kind: channel.Timeout, Op: "read", Err: errors.New("no message queued")}
	}

	next := s.queue[0]
	s.queue = s.queue[1:]

	return json.Unmarshal(next, v)
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Sent returns every command written to the stream
func (s *Stream) Sent() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]map[string]any(nil), s.sent...)
}

// Closed reports whether Close was called
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
