package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{3 * time.Second, "3s"},
		{95 * time.Second, "1m 35s"},
		{2*time.Hour + 5*time.Minute + 1*time.Second, "2h 5m 1s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(nil))
	assert.Equal(t, "-", FormatTime(&time.Time{}))

	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local)
	assert.Equal(t, "2024-03-01 10:30:00", FormatTime(&ts))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"ID", "State"}, [][]string{{"a1", "completed"}, {"b2", "failed"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "--")
	assert.Contains(t, lines[2], "completed")
	assert.Contains(t, lines[3], "failed")
}

func TestProgressBar_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	bar := newProgressBar(&buf, 3, "Converting")
	bar.Set(2)
	bar.Finish()
	assert.Contains(t, buf.String(), "Converting")
}
