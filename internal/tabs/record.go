// Package tabs holds the tab record passed between drivers and their callers.
package tabs

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFile is the file name used when the caller does not supply one
const DefaultFile = "tabs.json"

// DateLayout is the suffix layout appended to dated file names
const DateLayout = "2006-01-02"

var (
	ErrEmptyURL   = errors.New("url is empty")
	ErrInvalidURL = errors.New("url is not absolute")
)

// Record is one open browser tab. Title may be empty.
type Record struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// NewRecord builds a validated record
func NewRecord(title, rawURL string) (Record, error) {
	r := Record{Title: title, URL: rawURL}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}

	return r, nil
}

// Validate checks that the url is present and parses as an absolute URL
func (r Record) Validate() error {
	if r.URL == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, r.URL)
	}

	return nil
}

func (r Record) String() string {
	if r.Title == "" {
		return r.URL
	}

	return fmt.Sprintf("%s (%s)", r.Title, r.URL)
}

// ValidateAll returns the first invalid record, with its index
func ValidateAll(records []Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("tab %d: %w", i, err)
		}
	}

	return nil
}

// DatedPath inserts a -YYYY-MM-DD stamp before the extension of path.
// A nil date returns path unchanged.
func DatedPath(path string, date *time.Time) string {
	if date == nil {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	return fmt.Sprintf("%s-%s%s", base, date.Format(DateLayout), ext)
}
