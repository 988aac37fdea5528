package telemetry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToJSONFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Component: "scheduler"})
	require.NoError(t, err)

	logger.Info("construct completed", "construct_id", "abc123")
	require.Contains(t, buf.String(), "construct completed")
	require.Contains(t, buf.String(), `"component":"scheduler"`)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "not-a-level"})
	require.Error(t, err)
}

func TestWithFields_PersistsAcrossCalls(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, HumanReadable: true})
	require.NoError(t, err)

	derived := logger.WithFields(map[string]interface{}{"flow_id": "f-1"})
	derived.Warn("signer checked out")
	require.Contains(t, buf.String(), "flow_id")
}

func TestBufferedLogger_RecordsEntries(t *testing.T) {
	t.Parallel()

	buffer := NewBuffer()
	logger := NewBufferedLogger(buffer).WithFields(map[string]interface{}{"layer": "scheduler"})

	logger.Error("background task failed", "construct_id", "xyz")

	entries := buffer.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "error", entries[0].Level)
	require.Equal(t, "scheduler", entries[0].Fields["layer"])
	require.Equal(t, "xyz", entries[0].Fields["construct_id"])
}
