/*
Package config loads pipeline settings from YAML or JSON.

# Overview

Config wraps a decoded document and offers typed accessors that fall back
to a default when a key is missing or has the wrong type. Keys may be
dotted paths into nested maps:

	cfg, err := config.FromFile("pipeline.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	count := cfg.Int("source.count", 10)
	timeout := cfg.Duration("timeout", 30*time.Second)

# Settings

Load turns a Config into Settings, the values the flowstage CLI needs to
build and supervise a pipeline: channel capacity, send policy, journal
path, log level, observability switches and the stage list. Invalid
values are reported wrapped in ErrInvalidSettings.

	settings, err := config.LoadFile("pipeline.yaml")

# Thread Safety

Config is safe for concurrent reads. It does not copy the map it wraps.
*/
package config
