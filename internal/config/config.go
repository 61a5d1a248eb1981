// Package config loads server settings from an optional YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	CalCom     CalComConfig     `yaml:"calcom"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Log        LogConfig        `yaml:"log"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Token          string        `yaml:"token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TLS            TLSConfig     `yaml:"tls"`
}

// TLSConfig names the certificate and key used to serve HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether both halves of the key pair are configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// CalComConfig configures the scheduling provider.
type CalComConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Language     string        `yaml:"language"`
	EventTypeTTL time.Duration `yaml:"event_type_ttl"`
}

// ElevenLabsConfig configures the voice provider.
type ElevenLabsConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// UpstreamConfig holds settings shared by all provider calls.
type UpstreamConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures logging output, rotation and the in-memory buffer.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // json | text
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
	BufferSize int    `yaml:"buffer_size"`
}

// AlertsConfig sets alert thresholds and delivery.
type AlertsConfig struct {
	ErrorThreshold       int           `yaml:"error_threshold"`
	ErrorWindow          time.Duration `yaml:"error_window"`
	APIResponseThreshold time.Duration `yaml:"api_response_threshold"`
	MemoryThresholdMB    int           `yaml:"memory_threshold_mb"`
	MemoryCheckSchedule  string        `yaml:"memory_check_schedule"`
	Email                EmailConfig   `yaml:"email"`
}

// EmailConfig configures SMTP delivery of alerts.
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Enabled reports whether alert e-mail can be sent.
func (e EmailConfig) Enabled() bool { return e.Host != "" && len(e.To) > 0 }

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000, RequestTimeout: 60 * time.Second},
		CalCom: CalComConfig{
			BaseURL:      "https://api.cal.com",
			Language:     "en",
			EventTypeTTL: 10 * time.Minute,
		},
		ElevenLabs: ElevenLabsConfig{
			BaseURL:      "https://api.elevenlabs.io",
			DefaultModel: "eleven_multilingual_v2",
		},
		Upstream: UpstreamConfig{Timeout: 30 * time.Second},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  20,
			MaxAgeDays: 14,
			MaxBackups: 10,
			Compress:   true,
			BufferSize: 1000,
		},
		Alerts: AlertsConfig{
			ErrorThreshold:       5,
			ErrorWindow:          time.Minute,
			APIResponseThreshold: 2 * time.Second,
			MemoryThresholdMB:    500,
			MemoryCheckSchedule:  "@every 1m",
			Email:                EmailConfig{Port: 587},
		},
	}
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.intVar("PORT", &c.Server.Port)
	e.strVar("MCP_TOKEN", &c.Server.Token)
	e.strVar("TLS_CERT_FILE", &c.Server.TLS.CertFile)
	e.strVar("TLS_KEY_FILE", &c.Server.TLS.KeyFile)

	e.strVar("CALCOM_API_KEY", &c.CalCom.APIKey)
	e.strVar("CALCOM_BASE_URL", &c.CalCom.BaseURL)
	e.strVar("ELEVENLABS_API_KEY", &c.ElevenLabs.APIKey)
	e.strVar("ELEVENLABS_BASE_URL", &c.ElevenLabs.BaseURL)
	e.durationVar("UPSTREAM_TIMEOUT", &c.Upstream.Timeout)

	e.strVar("LOG_LEVEL", &c.Log.Level)
	e.strVar("LOG_FORMAT", &c.Log.Format)
	e.strVar("LOG_FILE", &c.Log.File)

	e.intVar("ERROR_THRESHOLD", &c.Alerts.ErrorThreshold)
	e.durationVar("ERROR_WINDOW", &c.Alerts.ErrorWindow)
	e.durationVar("API_RESPONSE_THRESHOLD", &c.Alerts.APIResponseThreshold)
	e.intVar("MEMORY_THRESHOLD_MB", &c.Alerts.MemoryThresholdMB)
	e.strVar("MEMORY_CHECK_SCHEDULE", &c.Alerts.MemoryCheckSchedule)

	e.strVar("EMAIL_HOST", &c.Alerts.Email.Host)
	e.intVar("EMAIL_PORT", &c.Alerts.Email.Port)
	e.strVar("EMAIL_USER", &c.Alerts.Email.User)
	e.strVar("EMAIL_PASS", &c.Alerts.Email.Password)
	e.listVar("EMAIL_TO", &c.Alerts.Email.To)

	return errors.Join(e.errs...)
}

// Validate checks that the config has usable values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls requires both cert_file and key_file")
	}
	if c.CalCom.BaseURL == "" {
		errs = append(errs, "calcom.base_url must not be empty")
	}
	if c.ElevenLabs.BaseURL == "" {
		errs = append(errs, "elevenlabs.base_url must not be empty")
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, "log.format must be one of: json, text")
	}
	if c.Log.BufferSize < 1 {
		errs = append(errs, "log.buffer_size must be >= 1")
	}
	if c.Alerts.ErrorThreshold < 1 {
		errs = append(errs, "alerts.error_threshold must be >= 1")
	}
	if c.Alerts.ErrorWindow <= 0 {
		errs = append(errs, "alerts.error_window must be positive")
	}
	if c.Alerts.MemoryThresholdMB < 0 {
		errs = append(errs, "alerts.memory_threshold_mb must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings lists settings that do not prevent startup but will make tool
// calls fail.
func (c *Config) Warnings() []string {
	var w []string
	if c.CalCom.APIKey == "" {
		w = append(w, "CALCOM_API_KEY is not set; scheduling tools will be rejected upstream")
	}
	if c.ElevenLabs.APIKey == "" {
		w = append(w, "ELEVENLABS_API_KEY is not set; voice tools will be rejected upstream")
	}
	return w
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) strVar(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) intVar(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

// durationVar accepts Go duration syntax or a bare integer of milliseconds.
func (e *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}

func (e *envReader) listVar(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
