// Package loader reads page descriptors from a device debugging endpoint and
// opens tabs on it, always through a channel.Channel.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kazuph/tab-transfer/internal/tabs"
)

// ErrMalformed means the endpoint answered with a payload that is not a
// valid list of page descriptors
var ErrMalformed = errors.New("malformed page list")

// Page is one target reported by the debugging endpoint
type Page struct {
	ID                   string  `json:"id"`
	Type                 string  `json:"type"`
	Title                string  `json:"title"`
	URL                  *string `json:"url"`
	WebSocketDebuggerURL string  `json:"webSocketDebuggerUrl"`
}

// IsPage reports whether the target is a browser page. The iOS proxy omits
// the type field for pages.
func (p Page) IsPage() bool {
	return p.Type == "" || p.Type == "page"
}

// ParsePages decodes a JSON array of page descriptors
func ParsePages(body []byte) ([]Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformed)
	}

	var pages []Page
	if err := json.Unmarshal(trimmed, &pages); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return pages, nil
}

// ToRecords maps browser pages to tab records in device order. Background
// and service targets are skipped; a page without a usable url fails the
// whole list.
func ToRecords(pages []Page) ([]tabs.Record, error) {
	records := make([]tabs.Record, 0, len(pages))

	for i, p := range pages {
		if !p.IsPage() {
			continue
		}
		if p.URL == nil {
			return nil, fmt.Errorf("%w: entry %d has no url", ErrMalformed, i)
		}

		r, err := tabs.NewRecord(p.Title, *p.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		records = append(records, r)
	}

	return records, nil
}

// Restorer opens tabs on a device, one record per call
type Restorer interface {
	Restore(ctx context.Context, record tabs.Record) error
	Close() error
}
