// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strconv"
)

// Kind is the value type an option accepts.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
)

// Option describes one configurable key inside a category.
type Option struct {
	Key     string
	Kind    Kind
	Default string
}

// registry fixes the full configuration surface. Unknown category/key pairs
// are rejected at Set time.
var registry = map[string][]Option{
	"airframes": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "api_key", Kind: KindString, Default: ""},
		{Key: "api_url", Kind: KindString, Default: "https://api.airframes.io"},
		{Key: "ws_url", Kind: KindString, Default: ""},
		{Key: "nats_url", Kind: KindString, Default: ""},
	},
	"tar1090": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "url", Kind: KindString, Default: "http://localhost/tar1090/data/aircraft.json"},
		{Key: "poll_interval", Kind: KindInt, Default: "5000"},
	},
	"adsbexchange": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "api_key", Kind: KindString, Default: ""},
		{Key: "api_url", Kind: KindString, Default: "https://adsbexchange-com1.p.rapidapi.com/v2"},
		{Key: "default_lat", Kind: KindFloat, Default: "38.9"},
		{Key: "default_lon", Kind: KindFloat, Default: "-77.0"},
		{Key: "default_dist", Kind: KindInt, Default: "250"},
		{Key: "poll_interval", Kind: KindInt, Default: "30000"},
	},
	"opensky": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "default_lat", Kind: KindFloat, Default: "38.9"},
		{Key: "default_lon", Kind: KindFloat, Default: "-77.0"},
		{Key: "default_radius", Kind: KindFloat, Default: "2.5"},
		{Key: "poll_interval", Kind: KindInt, Default: "15000"},
	},
	"eamwatch": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "api_url", Kind: KindString, Default: "https://api.eam.watch"},
		{Key: "api_token", Kind: KindString, Default: ""},
		{Key: "poll_interval", Kind: KindInt, Default: "60000"},
	},
	"whisper": {
		{Key: "server_url", Kind: KindString, Default: "http://localhost:9000"},
		{Key: "language", Kind: KindString, Default: "en"},
		{Key: "model", Kind: KindString, Default: "base.en"},
	},
	"audio": {
		{Key: "sample_rate", Kind: KindInt, Default: "16000"},
		{Key: "speech_onset_ms", Kind: KindInt, Default: "1000"},
		{Key: "silence_hang_ms", Kind: KindInt, Default: "500"},
		{Key: "max_segment_ms", Kind: KindInt, Default: "30000"},
		{Key: "vad_threshold", Kind: KindInt, Default: "500"},
		{Key: "recordings_dir", Kind: KindString, Default: "data/atc-recordings"},
	},
	"youtube": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "stream_url", Kind: KindString, Default: ""},
		{Key: "feed_id", Kind: KindString, Default: "hfgcs"},
		{Key: "ffmpeg_path", Kind: KindString, Default: "ffmpeg"},
		{Key: "channels", Kind: KindInt, Default: "1"},
	},
	"broadcast": {
		{Key: "enabled", Kind: KindBool, Default: "true"},
		{Key: "queue_size", Kind: KindInt, Default: "1024"},
	},
	"system": {
		{Key: "database_retention_days", Kind: KindInt, Default: "30"},
		{Key: "log_level", Kind: KindString, Default: "info"},
		{Key: "data_dir", Kind: KindString, Default: "data"},
		{Key: "aircraft_stale_seconds", Kind: KindInt, Default: "300"},
		{Key: "hfgcs_stale_seconds", Kind: KindInt, Default: "600"},
	},
	"photos": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "photo_dir", Kind: KindString, Default: "data/photos"},
		{Key: "retention_days", Kind: KindInt, Default: "90"},
	},
	"twitter": {
		{Key: "enabled", Kind: KindBool, Default: "false"},
		{Key: "api_key", Kind: KindString, Default: ""},
	},
}

func lookupOption(category, key string) (Option, error) {
	opts, ok := registry[category]
	if !ok {
		return Option{}, fmt.Errorf("config: unknown category %q", category)
	}
	for _, opt := range opts {
		if opt.Key == key {
			return opt, nil
		}
	}
	return Option{}, fmt.Errorf("config: unknown key %q in category %q", key, category)
}

// validateValue checks a raw value against the option's kind.
func validateValue(opt Option, value string) error {
	switch opt.Kind {
	case KindBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("config: %s must be a bool: %w", opt.Key, err)
		}
	case KindInt:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", opt.Key, err)
		}
	case KindFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("config: %s must be a number: %w", opt.Key, err)
		}
	}
	return nil
}

// Categories returns the declared category names.
func Categories() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
