package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidation(t *testing.T) {
	t.Parallel()
	require.NoError(t, Validate(Default()))
}

func TestValidate_RejectsZeroConcurrency(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.MaxBackgroundTasks = 0
	require.Error(t, Validate(cfg))
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.LogLevel = "verbose"
	require.Error(t, Validate(cfg))
}

func TestLoad_ParsesYAMLOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_background_tasks: 8\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(8), cfg.MaxBackgroundTasks)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, Default().CancellationGrace, cfg.CancellationGrace)
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Parallel()
	_, err := Load("/nonexistent/path.yaml")
	require.Error(t, err)
}
