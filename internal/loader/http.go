package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

// HTTPTabLoader fetches the tab list from a DevTools-style HTTP endpoint
type HTTPTabLoader struct {
	ch   channel.Channel
	path string
	log  zerolog.Logger
}

// NewHTTPTabLoader creates a new loader reading the tab list from path
func NewHTTPTabLoader(ch channel.Channel, path string, log zerolog.Logger) *HTTPTabLoader {
	return &HTTPTabLoader{ch: ch, path: path, log: log}
}

// Pages issues one request for the raw page descriptors
func (h *HTTPTabLoader) Pages(ctx context.Context) ([]Page, error) {
	body, err := h.ch.Request(ctx, http.MethodGet, h.path)
	if err != nil {
		return nil, err
	}

	return ParsePages(body)
}

// LoadTabs issues one request and maps the browser pages to records
func (h *HTTPTabLoader) LoadTabs(ctx context.Context) ([]tabs.Record, error) {
	pages, err := h.Pages(ctx)
	if err != nil {
		return nil, err
	}

	records, err := ToRecords(pages)
	if err != nil {
		return nil, err
	}

	h.log.Debug().Int("targets", len(pages)).Int("tabs", len(records)).Msg("loaded tabs")

	return records, nil
}

// HTTPTabRestorer opens tabs through the /json/new endpoint. Current Chrome
// only accepts PUT there; older builds answer GET.
type HTTPTabRestorer struct {
	ch     channel.Channel
	method string
	log    zerolog.Logger
}

func NewHTTPTabRestorer(ch channel.Channel, method string, log zerolog.Logger) *HTTPTabRestorer {
	return &HTTPTabRestorer{ch: ch, method: method, log: log}
}

func (h *HTTPTabRestorer) Restore(ctx context.Context, record tabs.Record) error {
	if _, err := h.ch.Request(ctx, h.method, "/json/new?"+url.QueryEscape(record.URL)); err != nil {
		return fmt.Errorf("failed to open %s: %w", record.URL, err)
	}

	h.log.Debug().Str("url", record.URL).Msg("tab opened")

	return nil
}

func (h *HTTPTabRestorer) Close() error {
	return nil
}
