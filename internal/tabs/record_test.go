package tabs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r, err := NewRecord("", "https://a.test")
	require.NoError(t, err)
	assert.Equal(t, "", r.Title)
	assert.Equal(t, "https://a.test", r.String())

	_, err = NewRecord("Empty", "")
	assert.ErrorIs(t, err, ErrEmptyURL)

	_, err = NewRecord("Relative", "example.com/path")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = NewRecord("Broken", "http://[::1")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestValidateAll(t *testing.T) {
	err := ValidateAll([]Record{
		{Title: "ok", URL: "https://example.com"},
		{Title: "bad", URL: ""},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyURL)
	assert.Contains(t, err.Error(), "tab 1")
}

func TestDatedPath(t *testing.T) {
	date := time.Date(2024, time.March, 5, 13, 0, 0, 0, time.UTC)

	assert.Equal(t, "tabs-2024-03-05.json", DatedPath("tabs.json", &date))
	assert.Equal(t, "out/my.tabs-2024-03-05.yaml", DatedPath("out/my.tabs.yaml", &date))
	assert.Equal(t, "tabs-2024-03-05", DatedPath("tabs", &date))
	assert.Equal(t, "tabs.json", DatedPath("tabs.json", nil))
}
