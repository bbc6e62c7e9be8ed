package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load reads, decodes and validates the config file at path.
//
// The TELEGRAM_BOT_TOKEN environment variable, when set, overrides the token
// from the file so the secret can stay out of version control.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}

	if tok := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); tok != "" {
		cfg.Telegram.Token = tok
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes config bytes strictly. The path is used only to pick the
// format (YAML vs JSON) and for error messages.
func Parse(path string, data []byte) (*Config, error) {
	jsonBytes, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg := defaults()
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %q (%s): %w", path, format, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Logging:  LoggingConfig{Level: "INFO", Console: true},
		OpenWindow: OpenWindowConfig{
			Enabled: true,
			From:    "08:00",
			To:      "10:00",
		},
		TracksFile: "./tracks.csv",
		Storage:    StorageConfig{Driver: "json", Path: "./state"},
		Broadcast:  BroadcastConfig{RatePerSec: 20},
	}
}
