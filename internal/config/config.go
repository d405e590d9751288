// Package config holds the xlbuild application configuration. Values come from
// defaults, the xlbuild.yaml file, XLBUILD_ environment variables and command line
// flags, merged by viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/transport"
)

const (
	IsolationGoroutine = "goroutine"
	IsolationProcess   = "process"
)

// Config holds all application configuration.
type Config struct {
	Log   LogConfig
	Build BuildConfig
	HTTP  HTTPConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Format is the log format: text or json (default: text)
	Format string
	// Level is one of none, debug, info, warn, error (default: info)
	Level string
}

// BuildConfig holds document construction settings.
type BuildConfig struct {
	// Mode is the construction strategy: auto, inline or worker (default: auto)
	Mode string
	// Threshold is the per-sheet cell count above which a worker is used (default: 10000)
	Threshold int
	// BatchSize is the number of rows per worker message (default: 1000)
	BatchSize int
	// BatchDelay is the pause between row batches (default: 2ms)
	BatchDelay time.Duration
	// TempDir is where workers write temporary documents (default: os.TempDir)
	TempDir string
	// Isolation runs workers on goroutines or in child processes (default: goroutine)
	Isolation string
	// WorkerPath is the executable started for process isolation (default: this binary)
	WorkerPath string
}

// HTTPConfig holds export server settings.
type HTTPConfig struct {
	// Addr is the host:port to listen on (default: :8080)
	Addr string
	// ReadTimeout bounds reading a request (default: 30s)
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a response (default: 5m)
	WriteTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration
	// MaxConcurrentBuilds limits documents built at once (default: 4)
	MaxConcurrentBuilds int
	// AcquireTimeout is how long a request waits for a build slot (default: 10s)
	AcquireTimeout time.Duration
	// MaxBodyBytes limits the size of a document request (default: 64MiB)
	MaxBodyBytes int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Build: BuildConfig{
			Mode:       string(xlbuild.ModeAuto),
			Threshold:  xlbuild.DefaultThreshold,
			BatchSize:  xlbuild.DefaultBatchSize,
			BatchDelay: xlbuild.DefaultBatchDelay,
			Isolation:  IsolationGoroutine,
		},
		HTTP: HTTPConfig{
			Addr:                ":8080",
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        5 * time.Minute,
			ShutdownTimeout:     30 * time.Second,
			MaxConcurrentBuilds: 4,
			AcquireTimeout:      10 * time.Second,
			MaxBodyBytes:        64 << 20,
		},
	}
}

// Validate checks every setting and reports all violations at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	switch c.Log.Level {
	case "none", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be none, debug, info, warn or error", c.Log.Level))
	}

	switch xlbuild.Mode(c.Build.Mode) {
	case xlbuild.ModeAuto, xlbuild.ModeInline, xlbuild.ModeWorker:
	default:
		errs = append(errs, fmt.Sprintf("build.mode %q must be auto, inline or worker", c.Build.Mode))
	}
	if c.Build.Threshold <= 0 {
		errs = append(errs, "build.threshold must be positive")
	}
	if c.Build.BatchSize <= 0 {
		errs = append(errs, "build.batchSize must be positive")
	}
	if c.Build.BatchDelay < 0 {
		errs = append(errs, "build.batchDelay must be non-negative")
	}
	switch c.Build.Isolation {
	case IsolationGoroutine, IsolationProcess:
	default:
		errs = append(errs, fmt.Sprintf("build.isolation %q must be goroutine or process", c.Build.Isolation))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, "http.addr is required")
	}
	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 {
		errs = append(errs, "http timeouts must be non-negative")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, "http.shutdownTimeout must be positive")
	}
	if c.HTTP.MaxConcurrentBuilds <= 0 {
		errs = append(errs, "http.maxConcurrentBuilds must be positive")
	}
	if c.HTTP.AcquireTimeout < 0 {
		errs = append(errs, "http.acquireTimeout must be non-negative")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, "http.maxBodyBytes must be positive")
	}

	if len(errs) > 0 {
		return errors.New("invalid configuration:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// Options returns the builder options described by the build settings.
func (c *Config) Options(log logger.Logger) xlbuild.Options {
	delay := c.Build.BatchDelay
	opts := xlbuild.Options{
		Mode:       xlbuild.Mode(c.Build.Mode),
		Threshold:  c.Build.Threshold,
		BatchSize:  c.Build.BatchSize,
		BatchDelay: &delay,
		TempDir:    c.Build.TempDir,
		Logger:     log,
	}
	if c.Build.Isolation == IsolationProcess {
		opts.Spawner = transport.ProcessSpawner{Path: c.Build.WorkerPath}
	}
	return opts
}

// Read returns the configuration merged by viper over the defaults. A missing
// configuration file is not an error.
func Read() (*Config, error) {
	config := DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}
