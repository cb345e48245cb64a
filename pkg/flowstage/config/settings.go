package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowstage/pkg/flowstage"
)

// ErrInvalidSettings wraps every validation failure from Load.
var ErrInvalidSettings = errors.New("invalid settings")

// Defaults applied by Load for missing keys.
const (
	DefaultChannelCapacity = 16
	DefaultSourceCount     = 10
)

// StageSettings describes one compute stage of the demo pipeline.
type StageSettings struct {
	Name string
	Op   string
	Arg  int
}

// Settings is the typed view of a pipeline config file.
//
//	pipeline: numbers
//	channel_capacity: 16
//	send_policy: fatal
//	journal_path: runs.db
//	log_level: info
//	metrics: false
//	tracing: false
//	timeout: 30s
//	source:
//	  start: 1
//	  count: 10
//	stages:
//	  - name: double
//	    op: mul
//	    arg: 2
type Settings struct {
	Pipeline        string
	ChannelCapacity int
	SendPolicy      flowstage.SendPolicy
	JournalPath     string
	LogLevel        slog.Level
	Metrics         bool
	Tracing         bool
	Timeout         time.Duration

	SourceStart int
	SourceCount int
	Stages      []StageSettings
}

// Load extracts and validates Settings from a Config.
func Load(cfg Config) (Settings, error) {
	s := Settings{
		Pipeline:        cfg.String("pipeline", "pipeline"),
		ChannelCapacity: cfg.Int("channel_capacity", DefaultChannelCapacity),
		JournalPath:     cfg.String("journal_path", ""),
		Metrics:         cfg.Bool("metrics", false),
		Tracing:         cfg.Bool("tracing", false),
		Timeout:         cfg.Duration("timeout", 0),
		SourceStart:     cfg.Int("source.start", 1),
		SourceCount:     cfg.Int("source.count", DefaultSourceCount),
	}

	policy, ok := flowstage.ParseSendPolicy(cfg.String("send_policy", ""))
	if !ok {
		return Settings{}, fmt.Errorf("%w: send_policy %q", ErrInvalidSettings, cfg.String("send_policy", ""))
	}
	s.SendPolicy = policy

	if err := s.LogLevel.UnmarshalText([]byte(cfg.String("log_level", "info"))); err != nil {
		return Settings{}, fmt.Errorf("%w: log_level: %v", ErrInvalidSettings, err)
	}

	if s.ChannelCapacity < 0 {
		return Settings{}, fmt.Errorf("%w: channel_capacity must be >= 0, got %d", ErrInvalidSettings, s.ChannelCapacity)
	}
	if s.SourceCount < 0 {
		return Settings{}, fmt.Errorf("%w: source.count must be >= 0, got %d", ErrInvalidSettings, s.SourceCount)
	}

	seen := make(map[string]bool)
	for i, st := range cfg.List("stages") {
		stage := StageSettings{
			Name: st.String("name", ""),
			Op:   st.String("op", ""),
			Arg:  st.Int("arg", 0),
		}
		if stage.Name == "" {
			stage.Name = fmt.Sprintf("stage-%d", i+1)
		}
		if stage.Op == "" {
			return Settings{}, fmt.Errorf("%w: stage %s has no op", ErrInvalidSettings, stage.Name)
		}
		if seen[stage.Name] {
			return Settings{}, fmt.Errorf("%w: duplicate stage name %s", ErrInvalidSettings, stage.Name)
		}
		seen[stage.Name] = true
		s.Stages = append(s.Stages, stage)
	}
	return s, nil
}

// LoadFile reads a config file and extracts Settings.
func LoadFile(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return Load(cfg)
}
