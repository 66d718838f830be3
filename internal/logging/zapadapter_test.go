package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestZapLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf))

	zl.Info("Optimization started",
		zap.String("optimization_id", "opt_1"),
		zap.Int("generations", 15),
		zap.Float64("best_fitness", 0.6),
		zap.Bool("parallel", true))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Optimization started", entry["message"])
	assert.Equal(t, "opt_1", entry["optimization_id"])
	assert.Equal(t, 15.0, entry["generations"])
	assert.Equal(t, 0.6, entry["best_fitness"],
		"float fields carry their bits in the field's integer slot and must decode from there")
	assert.Equal(t, true, entry["parallel"])
}

func TestZapLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(WarnLevel, &buf))

	zl.Debug("hidden")
	zl.Info("hidden too")
	assert.Zero(t, buf.Len())

	zl.Warn("visible", zap.Int64("attempt", 3))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, 3.0, entry["attempt"])
}

func TestZapLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).With(zap.String("component", "evolution"))

	zl.Info("generation complete", zap.Float64("average_fitness", -2.25))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "evolution", entry["component"])
	assert.Equal(t, -2.25, entry["average_fitness"])
}
