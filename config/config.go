// Package config loads, validates and applies the YAML runtime
// configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// HandlerConfig declares one output destination.
type HandlerConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Type    string `yaml:"type" validate:"required"` // console, file, http, gelf, memory, null
	Level   string `yaml:"level,omitempty"`
	Format  string `yaml:"format,omitempty"` // text, json, logfmt
	Enabled *bool  `yaml:"enabled,omitempty"`

	// Type-specific keys, validated per type.
	Config map[string]interface{} `yaml:"config,omitempty"`
}

// ContextConfig seeds the global ambient context.
type ContextConfig struct {
	Service     string            `yaml:"service,omitempty"`
	Version     string            `yaml:"version,omitempty"`
	Environment string            `yaml:"environment,omitempty"`
	Extra       map[string]string `yaml:"extra,omitempty"`
}

// PerformanceConfig tunes the async pipeline shared by all handlers.
type PerformanceConfig struct {
	QueueSize     int    `yaml:"queue_size,omitempty"`
	BatchSize     int    `yaml:"batch_size,omitempty"`
	FlushInterval string `yaml:"flush_interval,omitempty"` // e.g. "1s", "500ms"
	WorkerCount   int    `yaml:"worker_count,omitempty"`   // reserved, one worker per handler today
}

// RedactionConfig controls automatic field scrubbing.
type RedactionConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Fields      []string `yaml:"fields,omitempty"`
	Replacement string   `yaml:"replacement,omitempty"`
}

// Config is the root of the runtime configuration.
type Config struct {
	Level   string `yaml:"level,omitempty"`
	Format  string `yaml:"format,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`

	Handlers    []HandlerConfig   `yaml:"handlers,omitempty" validate:"dive"`
	Context     ContextConfig     `yaml:"context,omitempty"`
	Performance PerformanceConfig `yaml:"performance,omitempty"`
	Redaction   RedactionConfig   `yaml:"redaction,omitempty"`

	Diagnostics struct {
		Level      string `yaml:"level,omitempty"` // debug, info, warn, error
		Path       string `yaml:"path,omitempty"`  // empty keeps stderr
		MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
		MaxBackups int    `yaml:"max_backups,omitempty"`
	} `yaml:"diagnostics,omitempty"`
}

// Defaults returns a configuration equivalent to an unconfigured
// runtime: INFO level, text format, enabled, no handlers.
func Defaults() *Config {
	enabled := true
	return &Config{
		Level:   "INFO",
		Format:  "text",
		Enabled: &enabled,
	}
}

// Load reads a YAML file, merges it over the defaults and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv overlays TRACEFAN_* environment variables on a
// configuration. Unset variables leave the existing values untouched.
func FromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = Defaults()
	}
	if v := os.Getenv("TRACEFAN_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("TRACEFAN_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("TRACEFAN_ENABLED"); v != "" {
		enabled := isTruthy(v)
		cfg.Enabled = &enabled
	}
	if v := os.Getenv("TRACEFAN_SERVICE"); v != "" {
		cfg.Context.Service = v
	}
	if v := os.Getenv("TRACEFAN_VERSION"); v != "" {
		cfg.Context.Version = v
	}
	if v := os.Getenv("TRACEFAN_ENVIRONMENT"); v != "" {
		cfg.Context.Environment = v
	}
	if v := os.Getenv("TRACEFAN_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Performance.QueueSize = n
		}
	}
	if v := os.Getenv("TRACEFAN_DIAG_LEVEL"); v != "" {
		cfg.Diagnostics.Level = v
	}
	return cfg
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

var validLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "WARN": true,
	"ERROR": true, "CRITICAL": true, "FATAL": true, "NOTSET": true,
}

var validFormats = map[string]bool{
	"text": true, "json": true, "logfmt": true,
}

var validHandlerTypes = map[string]bool{
	"console": true, "file": true, "http": true,
	"gelf": true, "memory": true, "null": true,
}

// Validate runs struct-tag validation followed by semantic checks the
// tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, verr := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag",
					verr.Field(), verr.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return validateSemantics(cfg)
}

func validateSemantics(cfg *Config) error {
	if cfg.Level != "" && !validLevels[strings.ToUpper(cfg.Level)] {
		return fmt.Errorf("invalid level '%s'", cfg.Level)
	}
	if cfg.Format != "" && !validFormats[strings.ToLower(cfg.Format)] {
		return fmt.Errorf("invalid format '%s', must be 'text', 'json' or 'logfmt'", cfg.Format)
	}

	if cfg.Performance.QueueSize < 0 {
		return errors.New("performance.queue_size cannot be negative")
	}
	if cfg.Performance.BatchSize < 0 {
		return errors.New("performance.batch_size cannot be negative")
	}
	if cfg.Performance.FlushInterval != "" {
		if _, err := ParseDuration(cfg.Performance.FlushInterval); err != nil {
			return fmt.Errorf("invalid performance.flush_interval: %w", err)
		}
	}

	handlerNames := make(map[string]bool)
	for i, h := range cfg.Handlers {
		if h.Name == "" {
			return fmt.Errorf("handlers[%d]: name is required", i)
		}
		if handlerNames[h.Name] {
			return fmt.Errorf("handlers: duplicate name '%s'", h.Name)
		}
		handlerNames[h.Name] = true

		if !validHandlerTypes[h.Type] {
			return fmt.Errorf("handlers[%s]: unknown type '%s'", h.Name, h.Type)
		}
		if h.Level != "" && !validLevels[strings.ToUpper(h.Level)] {
			return fmt.Errorf("handlers[%s]: invalid level '%s'", h.Name, h.Level)
		}
		if h.Format != "" && !validFormats[strings.ToLower(h.Format)] {
			return fmt.Errorf("handlers[%s]: invalid format '%s'", h.Name, h.Format)
		}
		if err := validateHandlerConfig(h); err != nil {
			return err
		}
	}

	if cfg.Diagnostics.Level != "" {
		switch strings.ToLower(cfg.Diagnostics.Level) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid diagnostics.level '%s'", cfg.Diagnostics.Level)
		}
	}

	return nil
}

func validateHandlerConfig(h HandlerConfig) error {
	switch h.Type {
	case "file":
		if getString(h.Config, "path") == "" {
			return fmt.Errorf("handlers[%s]: path is required for type 'file'", h.Name)
		}
		if rotation := getString(h.Config, "rotation"); rotation != "" {
			switch rotation {
			case "daily", "weekly", "monthly":
			default:
				return fmt.Errorf("handlers[%s]: invalid rotation '%s', must be 'daily', 'weekly' or 'monthly'", h.Name, rotation)
			}
		}
		if maxSize := getString(h.Config, "max_size"); maxSize != "" {
			if _, err := ParseSize(maxSize); err != nil {
				return fmt.Errorf("handlers[%s]: invalid max_size: %w", h.Name, err)
			}
		}
		if getInt(h.Config, "max_count") < 0 {
			return fmt.Errorf("handlers[%s]: max_count cannot be negative", h.Name)
		}
	case "http":
		url := getString(h.Config, "url")
		if url == "" {
			return fmt.Errorf("handlers[%s]: url is required for type 'http'", h.Name)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("handlers[%s]: url '%s' must start with 'http://' or 'https://'", h.Name, url)
		}
		if timeout := getString(h.Config, "timeout"); timeout != "" {
			if _, err := ParseDuration(timeout); err != nil {
				return fmt.Errorf("handlers[%s]: invalid timeout: %w", h.Name, err)
			}
		}
	case "gelf":
		if getString(h.Config, "host") == "" {
			return fmt.Errorf("handlers[%s]: host is required for type 'gelf'", h.Name)
		}
		port := getInt(h.Config, "port")
		if port <= 0 || port > 65535 {
			return fmt.Errorf("handlers[%s]: invalid port %d for type 'gelf'", h.Name, port)
		}
		if proto := getString(h.Config, "protocol"); proto != "" && proto != "udp" && proto != "tcp" {
			return fmt.Errorf("handlers[%s]: invalid protocol '%s', must be 'udp' or 'tcp'", h.Name, proto)
		}
		if comp := getString(h.Config, "compression"); comp != "" && comp != "gzip" && comp != "zlib" && comp != "none" {
			return fmt.Errorf("handlers[%s]: invalid compression '%s', must be 'gzip', 'zlib' or 'none'", h.Name, comp)
		}
	}
	return nil
}

// Map accessors for the loosely-typed per-handler config blocks.

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func getBool(m map[string]interface{}, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return isTruthy(v)
	}
	return false
}

func getDuration(m map[string]interface{}, key string) time.Duration {
	if s := getString(m, key); s != "" {
		if d, err := ParseDuration(s); err == nil {
			return d
		}
	}
	return 0
}

func getSize(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		if n, err := ParseSize(v); err == nil {
			return n
		}
	}
	return 0
}
