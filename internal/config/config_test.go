package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1000, cfg.Optimization.MaxGenerations)
	assert.Equal(t, 1e-6, cfg.Optimization.Tolerance)
	assert.Equal(t, "reflect", cfg.Optimization.BoundaryPolicy)
	assert.True(t, cfg.Optimization.ParallelEvaluation)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OPT_MAX_GENERATIONS", "250")
	t.Setenv("OPT_BOUNDARY_POLICY", "clip")
	t.Setenv("OPT_PARALLEL_EVALUATION", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 250, cfg.Optimization.MaxGenerations)
	assert.Equal(t, "clip", cfg.Optimization.BoundaryPolicy)
	assert.False(t, cfg.Optimization.ParallelEvaluation)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}
