package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledLoggerDoesNotPanic(t *testing.T) {
	l := New(Config{Enabled: false})
	l.Info("hello", "k", "v")
	l.Error("boom")
	l.With("req_id", "1").Debug("nested")
}

func TestEnabledLoggerWrites(t *testing.T) {
	l := New(Config{Enabled: true, Service: "test", JSON: true})
	require.NotNil(t, l.slog, "expected slog handler to be set when enabled")
	l.Info("ready")
}
