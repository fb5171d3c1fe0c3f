package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tracefan/tracefan"
	"github.com/tracefan/tracefan/filters"
	"github.com/tracefan/tracefan/formatters"
	"github.com/tracefan/tracefan/handlers"
	"github.com/tracefan/tracefan/internal/diag"
)

// Build constructs the handlers a configuration declares. Disabled
// handlers are skipped. Handlers are returned stopped; Apply starts
// them.
func Build(cfg *Config, d *diag.Logger) ([]tracefan.Handler, error) {
	built := make([]tracefan.Handler, 0, len(cfg.Handlers))
	for _, hc := range cfg.Handlers {
		if hc.Enabled != nil && !*hc.Enabled {
			continue
		}
		h, err := buildHandler(cfg, hc, d)
		if err != nil {
			return nil, fmt.Errorf("handlers[%s]: %w", hc.Name, err)
		}
		built = append(built, h)
	}
	return built, nil
}

func buildHandler(cfg *Config, hc HandlerConfig, d *diag.Logger) (tracefan.Handler, error) {
	opts, err := baseOptions(cfg, hc, d)
	if err != nil {
		return nil, err
	}

	switch hc.Type {
	case "console":
		return handlers.NewConsole(handlers.ConsoleOptions{
			Options:      opts,
			SmartStreams: getBool(hc.Config, "smart_streams"),
			Colors:       getBool(hc.Config, "colors"),
		}), nil

	case "file":
		return handlers.NewFile(handlers.FileOptions{
			Options:               opts,
			Path:                  getString(hc.Config, "path"),
			Rotation:              getString(hc.Config, "rotation"),
			MaxSize:               getSize(hc.Config, "max_size"),
			MaxCount:              getInt(hc.Config, "max_count"),
			Compress:              getBool(hc.Config, "compress"),
			RotationCheckInterval: getDuration(hc.Config, "rotation_check_interval"),
		})

	case "http":
		return handlers.NewHTTP(handlers.HTTPOptions{
			Options:       opts,
			URL:           getString(hc.Config, "url"),
			Method:        getString(hc.Config, "method"),
			BearerToken:   getString(hc.Config, "bearer_token"),
			BasicUser:     getString(hc.Config, "basic_user"),
			BasicPassword: getString(hc.Config, "basic_password"),
			Timeout:       getDuration(hc.Config, "timeout"),
			MaxRetries:    getInt(hc.Config, "max_retries"),
		})

	case "gelf":
		return handlers.NewGELF(handlers.GELFOptions{
			Options:     opts,
			Host:        getString(hc.Config, "host"),
			Port:        getInt(hc.Config, "port"),
			Protocol:    getString(hc.Config, "protocol"),
			Compression: getString(hc.Config, "compression"),
		})

	case "memory":
		return handlers.NewMemory(opts), nil

	case "null":
		return handlers.NewNull(opts), nil
	}
	return nil, fmt.Errorf("unknown handler type '%s'", hc.Type)
}

// baseOptions resolves the shared handler options: the handler's own
// level and format fall back to the top-level ones, the performance
// section supplies the pipeline defaults.
func baseOptions(cfg *Config, hc HandlerConfig, d *diag.Logger) (handlers.Options, error) {
	levelName := hc.Level
	if levelName == "" {
		levelName = cfg.Level
	}
	level := tracefan.NOTSET
	if levelName != "" {
		var err error
		level, err = tracefan.ParseLevel(levelName)
		if err != nil {
			return handlers.Options{}, err
		}
	}

	formatName := hc.Format
	if formatName == "" {
		formatName = cfg.Format
	}
	formatter, err := buildFormatter(formatName)
	if err != nil {
		return handlers.Options{}, err
	}

	fs, err := buildFilters(hc)
	if err != nil {
		return handlers.Options{}, err
	}

	var flushInterval time.Duration
	if cfg.Performance.FlushInterval != "" {
		flushInterval, _ = ParseDuration(cfg.Performance.FlushInterval)
	}

	return handlers.Options{
		Name:          hc.Name,
		Level:         level,
		Formatter:     formatter,
		Filters:       fs,
		BatchSize:     cfg.Performance.BatchSize,
		FlushInterval: flushInterval,
		MaxQueueSize:  cfg.Performance.QueueSize,
		Diag:          d,
	}, nil
}

func buildFormatter(name string) (formatters.Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return formatters.NewText(), nil
	case "json":
		return formatters.NewJSON(), nil
	case "logfmt":
		return formatters.NewLogfmt(), nil
	}
	return nil, fmt.Errorf("unknown format '%s'", name)
}

// buildFilters reads the optional pattern keys of a handler block:
// logger_pattern matches logger names (dot-separated globs),
// message_pattern matches message text. exclude inverts both.
func buildFilters(hc HandlerConfig) ([]filters.Filter, error) {
	var fs []filters.Filter
	exclude := getBool(hc.Config, "exclude")

	if pattern := getString(hc.Config, "logger_pattern"); pattern != "" {
		f, err := filters.NewName(pattern, exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid logger_pattern: %w", err)
		}
		fs = append(fs, f)
	}
	if pattern := getString(hc.Config, "message_pattern"); pattern != "" {
		f, err := filters.NewMessage(pattern, exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid message_pattern: %w", err)
		}
		fs = append(fs, f)
	}
	return fs, nil
}

// Apply configures a registry from a validated configuration: level,
// enabled flag, redaction, ambient context, diagnostics and the
// handler set. Previously installed handlers are stopped and replaced.
func Apply(reg *tracefan.Registry, cfg *Config) error {
	d := reg.Diag()
	if cfg.Diagnostics.Path != "" {
		d = diag.NewFile(cfg.Diagnostics.Path, diag.WARN,
			cfg.Diagnostics.MaxSizeMB, cfg.Diagnostics.MaxBackups)
		reg.SetDiag(d)
	}
	if cfg.Diagnostics.Level != "" {
		if err := d.SetLevelFromString(cfg.Diagnostics.Level); err != nil {
			return err
		}
	}

	if cfg.Level != "" {
		level, err := tracefan.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		reg.SetLevel(level)
	}
	if cfg.Enabled != nil {
		reg.SetEnabled(*cfg.Enabled)
	}

	if cfg.Redaction.Enabled {
		fields := cfg.Redaction.Fields
		if len(fields) == 0 {
			fields = tracefan.DefaultRedactedFields
		}
		reg.SetRedactor(tracefan.NewRedactor(fields, cfg.Redaction.Replacement))
	} else {
		reg.SetRedactor(nil)
	}

	prop := reg.Propagator()
	if cfg.Context.Service != "" {
		prop.Set("service", cfg.Context.Service)
	}
	if cfg.Context.Version != "" {
		prop.Set("version", cfg.Context.Version)
	}
	if cfg.Context.Environment != "" {
		prop.Set("environment", cfg.Context.Environment)
	}
	for k, v := range cfg.Context.Extra {
		prop.Set(k, v)
	}

	built, err := Build(cfg, d)
	if err != nil {
		return err
	}

	// Replace the handler set atomically from the caller's view: stop
	// the old handlers after the new ones are ready.
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, old := range reg.Dispatcher().Handlers() {
		reg.RemoveHandler(old.Name())
		if err := old.Stop(stopCtx); err != nil {
			d.Warn("failed to stop handler '%s' during reconfiguration: %v", old.Name(), err)
		}
	}

	for _, h := range built {
		if err := h.Start(); err != nil {
			return fmt.Errorf("failed to start handler '%s': %w", h.Name(), err)
		}
		reg.AddHandler(h)
	}

	reg.MarkConfigured()
	return nil
}
