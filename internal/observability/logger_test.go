package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "pdf2ppt"})

	ctx := ContextWithJobID(context.Background(), "job-1")
	logger.WithContext(ctx).WithOperation("build").Info().Int("page", 2).Msg("page placed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pdf2ppt", entry["service"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.Equal(t, "build", entry["operation"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, "page placed", entry["message"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestJobIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", JobIDFromContext(context.Background()))
}

func TestLogger_WithBuildsChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	child := logger.With().Str("component", "api").Logger().WithJob("job-7")
	child.Info().Bool("busy", true).Msg("accepted")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api", entry["component"])
	assert.Equal(t, "job-7", entry["job_id"])
	assert.Equal(t, true, entry["busy"])

	buf.Reset()
	logger.Info().Msg("parent")
	assert.NotContains(t, buf.String(), "job-7", "the parent is unchanged")
}
