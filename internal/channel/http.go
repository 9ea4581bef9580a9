package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxBodySize = 32 << 20

type state int

const (
	stateNew state = iota
	stateOpen
	stateClosed
)

// endpoint holds the HTTP side shared by every tunnel type
type endpoint struct {
	mu      sync.Mutex
	state   state
	addr    string
	timeout time.Duration
	client  *http.Client
	log     zerolog.Logger
}

func newEndpoint(port int, timeout time.Duration, log zerolog.Logger) *endpoint {
	return &endpoint{
		addr:    fmt.Sprintf("127.0.0.1:%d", port),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (e *endpoint) Addr() string {
	return e.addr
}

// begin moves a new endpoint into the opening phase; a used endpoint cannot be opened again
func (e *endpoint) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateNew {
		return newError(Closed, "open", errors.New("channel cannot be reopened"))
	}

	return nil
}

func (e *endpoint) setState(s state) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// finish marks the endpoint closed and reports whether it was open
func (e *endpoint) finish() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasOpen := e.state == stateOpen
	e.state = stateClosed

	return wasOpen
}

func (e *endpoint) ensureOpen(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateOpen:
		return nil
	case stateNew:
		return newError(Closed, op, errors.New("channel is not open"))
	default:
		return newError(Closed, op, errors.New("channel already closed"))
	}
}

func (e *endpoint) Request(ctx context.Context, method, path string) ([]byte, error) {
	if err := e.ensureOpen("request"); err != nil {
		return nil, err
	}

	url := "http://" + e.addr + path
	e.log.Debug().Str("method", method).Str("url", url).Msg("requesting")

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, newError(Unreachable, "request", fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classify("request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classify("request", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(Unreachable, "request", fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, path))
	}

	e.log.Debug().Int("bytes", len(body)).Str("path", path).Msg("response received")

	return body, nil
}

func (e *endpoint) Stream(ctx context.Context, target string) (Stream, error) {
	if err := e.ensureOpen("stream"); err != nil {
		return nil, err
	}

	if strings.HasPrefix(target, "/") {
		target = "ws://" + e.addr + target
	}

	e.log.Debug().Str("url", target).Msg("dialing websocket")

	dialer := websocket.Dialer{HandshakeTimeout: e.timeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, classify("stream", err)
	}

	return &deadlineStream{conn: conn, timeout: e.timeout}, nil
}

// deadlineStream applies the channel timeout to every read and write
type deadlineStream struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *deadlineStream) WriteJSON(v any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return classify("write", err)
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return classify("write", err)
	}

	return nil
}

func (s *deadlineStream) ReadJSON(v any) error {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return classify("read", err)
	}
	if err := s.conn.ReadJSON(v); err != nil {
		return classify("read", err)
	}

	return nil
}

func (s *deadlineStream) Close() error {
	return s.conn.Close()
}

// classify maps transport errors onto channel kinds
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(Timeout, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(Timeout, op, err)
	}

	return newError(Unreachable, op, err)
}
