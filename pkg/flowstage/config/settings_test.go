package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/flowstage/pkg/flowstage"
	"github.com/randalmurphal/flowstage/pkg/flowstage/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
pipeline: numbers
channel_capacity: 4
send_policy: discard
journal_path: /tmp/runs.db
log_level: debug
metrics: true
tracing: true
timeout: 2s
source:
  start: 5
  count: 3
stages:
  - name: double
    op: mul
    arg: 2
  - op: sum
`

func TestLoad_Full(t *testing.T) {
	cfg, err := config.FromYAML([]byte(fullYAML))
	require.NoError(t, err)

	s, err := config.Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, "numbers", s.Pipeline)
	assert.Equal(t, 4, s.ChannelCapacity)
	assert.Equal(t, flowstage.SendDiscard, s.SendPolicy)
	assert.Equal(t, "/tmp/runs.db", s.JournalPath)
	assert.Equal(t, slog.LevelDebug, s.LogLevel)
	assert.True(t, s.Metrics)
	assert.True(t, s.Tracing)
	assert.Equal(t, 2*time.Second, s.Timeout)
	assert.Equal(t, 5, s.SourceStart)
	assert.Equal(t, 3, s.SourceCount)
	assert.Equal(t, []config.StageSettings{
		{Name: "double", Op: "mul", Arg: 2},
		{Name: "stage-2", Op: "sum"},
	}, s.Stages)
}

func TestLoad_Defaults(t *testing.T) {
	s, err := config.Load(config.New(nil))
	require.NoError(t, err)

	assert.Equal(t, "pipeline", s.Pipeline)
	assert.Equal(t, config.DefaultChannelCapacity, s.ChannelCapacity)
	assert.Equal(t, flowstage.SendFatal, s.SendPolicy)
	assert.Equal(t, slog.LevelInfo, s.LogLevel)
	assert.Equal(t, 1, s.SourceStart)
	assert.Equal(t, config.DefaultSourceCount, s.SourceCount)
	assert.Empty(t, s.Stages)
	assert.Zero(t, s.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"send policy", "send_policy: retry"},
		{"log level", "log_level: loud"},
		{"negative capacity", "channel_capacity: -1"},
		{"negative count", "source:\n  count: -2"},
		{"stage without op", "stages:\n  - name: x"},
		{"duplicate stage", "stages:\n  - {name: x, op: mul}\n  - {name: x, op: add}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.yaml))
			require.NoError(t, err)

			_, err = config.Load(cfg)
			assert.ErrorIs(t, err, config.ErrInvalidSettings)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullYAML), 0o600))

	s, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "numbers", s.Pipeline)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
