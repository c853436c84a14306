package config

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/saylorsolutions/pvdispatch/assert"
	"github.com/saylorsolutions/pvdispatch/dispatch"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"os"
	"time"
)

const EnvPrefix = "PVDISPATCH_"

// Environment variables that override file configuration.
const (
	EnvCategories    = EnvPrefix + "CATEGORIES"
	EnvQueueCapacity = EnvPrefix + "QUEUE_CAPACITY"
	EnvStopTimeout   = EnvPrefix + "STOP_TIMEOUT"
	EnvLockOSThreads = EnvPrefix + "LOCK_OS_THREADS"
	EnvLogLevel      = EnvPrefix + "LOG_LEVEL"
	EnvLogFormat     = EnvPrefix + "LOG_FORMAT"
	EnvLogFile       = EnvPrefix + "LOG_FILE"
	EnvMetricsAddr   = EnvPrefix + "METRICS_ADDR"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the complete configuration of a pvdispatch process.
type Config struct {
	Dispatcher Dispatcher `yaml:"dispatcher"`
	Logging    Logging    `yaml:"logging"`
	Metrics    Metrics    `yaml:"metrics"`
}

type Dispatcher struct {
	Categories    []string      `yaml:"categories"`
	QueueCapacity int           `yaml:"queue_capacity"`  // QueueCapacity bounds each category queue, 0 is unbounded.
	StopTimeout   time.Duration `yaml:"stop_timeout"`    // StopTimeout is how long each worker may drain on stop, <= 0 waits indefinitely.
	LockOSThreads bool          `yaml:"lock_os_threads"` // LockOSThreads runs each worker locked to its own OS thread.
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"` // File is an optional log file, written in addition to stderr.
}

type Metrics struct {
	Addr string `yaml:"addr,omitempty"` // Addr is the listen address for the Prometheus exporter, empty disables it.
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cats := dispatch.DefaultCategories()
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = cat.String()
	}
	return &Config{
		Dispatcher: Dispatcher{
			Categories:  names,
			StopTimeout: dispatch.DefaultStopTimeout,
		},
		Logging: Logging{
			Level:  slog.LevelInfo.String(),
			Format: slogx.FormatText,
		},
	}
}

// Load reads the YAML file at path over [Default], then applies overrides from env.
// An empty path skips reading a file.
func Load(path string, env Env) (*Config, error) {
	conf := Default()
	if len(path) > 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := conf.Decode(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if err := conf.ApplyEnv(env); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Decode overlays YAML data onto the Config. Unknown fields are rejected.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields that have a corresponding, non-empty variable in env.
func (c *Config) ApplyEnv(env Env) error {
	var err error
	errs := assert.CollectErrors("; ")
	c.Dispatcher.Categories = env.List(EnvCategories, c.Dispatcher.Categories)
	c.Dispatcher.QueueCapacity, err = env.Int(EnvQueueCapacity, c.Dispatcher.QueueCapacity)
	errs.Add(err)
	c.Dispatcher.StopTimeout, err = env.Duration(EnvStopTimeout, c.Dispatcher.StopTimeout)
	errs.Add(err)
	c.Dispatcher.LockOSThreads, err = env.Bool(EnvLockOSThreads, c.Dispatcher.LockOSThreads)
	errs.Add(err)
	c.Logging.Level = env.Val(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = env.Val(EnvLogFormat, c.Logging.Format)
	c.Logging.File = env.Val(EnvLogFile, c.Logging.File)
	c.Metrics.Addr = env.Val(EnvMetricsAddr, c.Metrics.Addr)
	return errs.Result()
}

// Validate checks that the Config can be turned into a logger and dispatcher.
func (c *Config) Validate() error {
	errs := assert.CollectErrors("; ")
	if _, err := dispatch.ParseCategories(c.Dispatcher.Categories...); err != nil {
		errs.Add(err)
	}
	if c.Dispatcher.QueueCapacity < 0 {
		errs.AddString("queue capacity must be >= 0, got %d", c.Dispatcher.QueueCapacity)
	}
	if _, err := slogx.ParseLevel(c.Logging.Level); err != nil {
		errs.Add(err)
	}
	if _, err := slogx.NewHandler(io.Discard, slog.LevelInfo, c.Logging.Format); err != nil {
		errs.Add(err)
	}
	if err := errs.Result(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Encode writes the Config as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// DispatchOptions converts the dispatcher section into options for [dispatch.New] or [dispatch.Setup].
// Additional options are applied after the configured ones.
func (c *Config) DispatchOptions(extra ...dispatch.Option) ([]dispatch.Option, error) {
	cats, err := dispatch.ParseCategories(c.Dispatcher.Categories...)
	if err != nil {
		return nil, err
	}
	opts := []dispatch.Option{
		dispatch.WithCategories(cats...),
		dispatch.WithQueueCapacity(c.Dispatcher.QueueCapacity),
		dispatch.WithStopTimeout(c.Dispatcher.StopTimeout),
	}
	if c.Dispatcher.LockOSThreads {
		opts = append(opts, dispatch.WithThreadFactory(dispatch.LockedOSThreads))
	}
	return append(opts, extra...), nil
}

// NewLogger creates a logger writing to stderr and, if configured, appending to the log file.
// The returned close function must be called to close the log file, and is never nil.
func (l Logging) NewLogger(stderr io.Writer) (log *slog.Logger, closeFn func() error, err error) {
	closeFn = func() error { return nil }
	level, err := slogx.ParseLevel(l.Level)
	if err != nil {
		return nil, closeFn, err
	}
	handler, err := slogx.NewHandler(stderr, level, l.Format)
	if err != nil {
		return nil, closeFn, err
	}
	if len(l.File) > 0 {
		f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to open log file: %w", err)
		}
		fileHandler, err := slogx.NewHandler(f, level, l.Format)
		if err != nil {
			_ = f.Close()
			return nil, closeFn, err
		}
		handler = slogx.MergeHandlers(handler, fileHandler)
		closeFn = f.Close
	}
	return slog.New(slogx.NewDedupeHandler(handler)), closeFn, nil
}
