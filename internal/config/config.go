package config

import "time"

// GatewayConfig points at the external platform client process.
type GatewayConfig struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	Token     string        `mapstructure:"token" yaml:"token"`
	QueueSize int           `mapstructure:"queue_size" yaml:"queue_size"`
	Backoff   time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// ConfirmConfig controls the signed interactive-confirmation tokens.
type ConfirmConfig struct {
	Secret string        `mapstructure:"secret" yaml:"secret"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// VoiceConfig configures the LiveKit join-grant issuer; disabled when the
// key is empty.
type VoiceConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// DiagConfig configures the read-only diagnostics listener; empty addr
// disables it.
type DiagConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	Token             string        `mapstructure:"token" yaml:"token"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
}

// Config holds server configuration values.
type Config struct {
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
	ServiceUser     string        `mapstructure:"service_user" yaml:"service_user"`
	Admins          []string      `mapstructure:"admins" yaml:"admins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Gateway         GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Confirm         ConfirmConfig `mapstructure:"confirm" yaml:"confirm"`
	Voice           VoiceConfig   `mapstructure:"voice" yaml:"voice"`
	Diag            DiagConfig    `mapstructure:"diag" yaml:"diag"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:        "info",
		DatabasePath:    "tempvox.db",
		ShutdownTimeout: 5 * time.Second,
		Gateway: GatewayConfig{
			URL:       "ws://localhost:9400/events",
			QueueSize: 64,
			Backoff:   3 * time.Second,
		},
		Confirm: ConfirmConfig{
			TTL: 45 * time.Second,
		},
		Diag: DiagConfig{
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}
