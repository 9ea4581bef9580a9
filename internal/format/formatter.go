package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazuph/tab-transfer/internal/tabs"
)

// Format represents the tab file format
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatHTML is a write-only page of links
	FormatHTML Format = "html"
)

// ErrWriteOnly is returned when decoding a format that cannot be read back
var ErrWriteOnly = errors.New("format is write-only")

// TabFormatter encodes and decodes tab lists in one format
type TabFormatter struct {
	format Format
}

// NewTabFormatter creates a new tab formatter
func NewTabFormatter(format Format) *TabFormatter {
	return &TabFormatter{
		format: format,
	}
}

// ForPath picks the formatter from the file extension: .yaml and .yml are
// YAML, .html and .htm are HTML, anything else is JSON.
func ForPath(path string) *TabFormatter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewTabFormatter(FormatYAML)
	case ".html", ".htm":
		return NewTabFormatter(FormatHTML)
	default:
		return NewTabFormatter(FormatJSON)
	}
}

// Encode formats a slice of tabs
func (f *TabFormatter) Encode(records []tabs.Record) ([]byte, error) {
	if records == nil {
		records = []tabs.Record{}
	}

	switch f.format {
	case FormatJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return data, nil
	case FormatHTML:
		return encodeHTML(records)
	default:
		return nil, fmt.Errorf("unsupported format: %s", f.format)
	}
}

// Decode parses a tab list and validates every record
func (f *TabFormatter) Decode(data []byte) ([]tabs.Record, error) {
	var records []tabs.Record

	switch f.format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatHTML:
		return nil, fmt.Errorf("%s: %w", f.format, ErrWriteOnly)
	default:
		return nil, fmt.Errorf("unsupported format: %s", f.format)
	}

	if err := tabs.ValidateAll(records); err != nil {
		return nil, err
	}

	if records == nil {
		records = []tabs.Record{}
	}

	return records, nil
}

// ParseFormat parses a format string and returns the Format enum
func ParseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return FormatJSON, fmt.Errorf("unsupported format: %s (supported: json, yaml, html)", formatStr)
	}
}

// MimeType returns the MIME type for the format
func (f *TabFormatter) MimeType() string {
	switch f.format {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/x-yaml"
	case FormatHTML:
		return "text/html"
	default:
		return "text/plain"
	}
}

// WriteFile writes records to path in the format implied by its extension
func WriteFile(path string, records []tabs.Record) error {
	data, err := ForPath(path).Encode(records)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// ReadFile reads a tab file written by WriteFile
func ReadFile(path string) ([]tabs.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tabs file: %w", err)
	}

	records, err := ForPath(path).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return records, nil
}
