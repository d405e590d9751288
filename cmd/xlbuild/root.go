package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ukaji3/xlbuild-go/internal/config"
	"github.com/ukaji3/xlbuild-go/pkg/logger"
)

// newRootCommand lets every subcommand read settings from CLI flags, environment
// variables prefixed with XLBUILD, or xlbuild.yaml (in that order).
func newRootCommand() *cobra.Command {
	viper.SetConfigName("xlbuild")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("XLBUILD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	for _, path := range []string{"/etc/xlbuild", "$HOME/.xlbuild", "."} {
		viper.AddConfigPath(path)
	}

	root := &cobra.Command{
		Use:   "xlbuild",
		Short: "Build spreadsheet documents from row data",
		Long: `xlbuild builds xlsx documents from JSON document definitions.

Small documents are built in memory. Documents with a sheet larger than the cell
threshold are streamed to a background worker that writes them incrementally.`,
		SilenceUsage: true,
	}

	defaults := config.DefaultConfig()
	flags := root.PersistentFlags()
	flags.String("log-format", defaults.Log.Format, "the log format to output logs in: text or json")
	flags.String("log-level", defaults.Log.Level, "the log level: none, debug, info, warn or error")
	mustBindPFlag("log.format", flags.Lookup("log-format"))
	mustBindEnv("log.format", "XLBUILD_LOG_FORMAT")
	mustBindPFlag("log.level", flags.Lookup("log-level"))
	mustBindEnv("log.level", "XLBUILD_LOG_LEVEL")

	root.AddCommand(newBuildCommand())
	root.AddCommand(newInspectCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newWorkerCommand())
	return root
}

// bindBuildFlags adds the document construction flags to flags. Binding to viper
// happens in PreRun so that only the running command's flags are bound.
func bindBuildFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	flags := cmd.Flags()

	flags.String("mode", defaults.Build.Mode, "construction strategy: auto, inline or worker")
	flags.Int("threshold", defaults.Build.Threshold, "per-sheet cell count above which a worker builds the document")
	flags.Int("batch-size", defaults.Build.BatchSize, "rows per message sent to the worker")
	flags.Duration("batch-delay", defaults.Build.BatchDelay, "pause between row batches sent to the worker")
	flags.String("temp-dir", defaults.Build.TempDir, "directory for temporary worker files")
	flags.String("isolation", defaults.Build.Isolation, "where workers run: goroutine or process")
	flags.String("worker-path", defaults.Build.WorkerPath, "executable started for process isolation (default: this binary)")

	prev := cmd.PreRun
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		mustBindPFlag("build.mode", flags.Lookup("mode"))
		mustBindEnv("build.mode", "XLBUILD_BUILD_MODE")
		mustBindPFlag("build.threshold", flags.Lookup("threshold"))
		mustBindEnv("build.threshold", "XLBUILD_BUILD_THRESHOLD")
		mustBindPFlag("build.batchSize", flags.Lookup("batch-size"))
		mustBindEnv("build.batchSize", "XLBUILD_BUILD_BATCH_SIZE")
		mustBindPFlag("build.batchDelay", flags.Lookup("batch-delay"))
		mustBindEnv("build.batchDelay", "XLBUILD_BUILD_BATCH_DELAY")
		mustBindPFlag("build.tempDir", flags.Lookup("temp-dir"))
		mustBindEnv("build.tempDir", "XLBUILD_BUILD_TEMP_DIR")
		mustBindPFlag("build.isolation", flags.Lookup("isolation"))
		mustBindEnv("build.isolation", "XLBUILD_BUILD_ISOLATION")
		mustBindPFlag("build.workerPath", flags.Lookup("worker-path"))
		mustBindEnv("build.workerPath", "XLBUILD_WORKER_PATH")
		if prev != nil {
			prev(cmd, args)
		}
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func mustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// loadConfig reads and validates the configuration and builds the logger it describes.
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}
