package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

// ErrNoTarget means the device exposes no page that accepts inspector commands
var ErrNoTarget = errors.New("no inspectable page found")

// maxSkippedMessages bounds how many unrelated events are read while waiting for a reply
const maxSkippedMessages = 64

// inspectorMessage is a command sent over the inspector websocket
type inspectorMessage struct {
	ID     int            `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type inspectorReply struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Error  *inspectorError `json:"error"`
	Result *struct {
		WasThrown        bool            `json:"wasThrown"`
		ExceptionDetails json.RawMessage `json:"exceptionDetails"`
	} `json:"result"`
}

type inspectorError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WebSocketTabRestorer opens tabs by evaluating window.open in an existing
// page over the WebKit inspector protocol, one command per tab
type WebSocketTabRestorer struct {
	stream channel.Stream
	nextID int
	log    zerolog.Logger
}

// NewWebSocketTabRestorer lists targets at listPath and attaches to the first
// page exposing a debugger websocket
func NewWebSocketTabRestorer(ctx context.Context, ch channel.Channel, listPath string, log zerolog.Logger) (*WebSocketTabRestorer, error) {
	pages, err := NewHTTPTabLoader(ch, listPath, log).Pages(ctx)
	if err != nil {
		return nil, err
	}

	var target *Page
	for i := range pages {
		if pages[i].IsPage() && pages[i].WebSocketDebuggerURL != "" {
			target = &pages[i]
			break
		}
	}
	if target == nil {
		return nil, ErrNoTarget
	}

	stream, err := ch.Stream(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("target", target.WebSocketDebuggerURL).Msg("attached to inspector")

	return &WebSocketTabRestorer{stream: stream, log: log}, nil
}

func (w *WebSocketTabRestorer) Restore(_ context.Context, record tabs.Record) error {
	quoted, err := json.Marshal(record.URL)
	if err != nil {
		return err
	}

	w.nextID++
	msg := inspectorMessage{
		ID:     w.nextID,
		Method: "Runtime.evaluate",
		Params: map[string]any{
			"expression": fmt.Sprintf("window.open(%s, '_blank'); true", quoted),
		},
	}

	if err := w.stream.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send open command: %w", err)
	}

	reply, err := w.await(msg.ID)
	if err != nil {
		return err
	}

	switch {
	case reply.Error != nil:
		return fmt.Errorf("inspector rejected open command: %s (code %d)", reply.Error.Message, reply.Error.Code)
	case reply.Result != nil && (reply.Result.WasThrown || len(reply.Result.ExceptionDetails) > 0):
		return fmt.Errorf("window.open threw in the inspected page")
	}

	w.log.Debug().Str("url", record.URL).Msg("tab opened")

	return nil
}

// await reads until the reply for id arrives, skipping inspector events
func (w *WebSocketTabRestorer) await(id int) (inspectorReply, error) {
	for i := 0; i < maxSkippedMessages; i++ {
		var reply inspectorReply
		if err := w.stream.ReadJSON(&reply); err != nil {
			return inspectorReply{}, fmt.Errorf("failed to read inspector reply: %w", err)
		}
		if reply.ID == id {
			return reply, nil
		}
	}

	return inspectorReply{}, fmt.Errorf("no reply to command %d", id)
}

func (w *WebSocketTabRestorer) Close() error {
	return w.stream.Close()
}
