package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ukaji3/xlbuild-go/internal/config"
	"github.com/ukaji3/xlbuild-go/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP export server",
		Long: `Run the HTTP export server.

POST /v1/documents accepts a JSON document definition and answers with the
xlsx document. GET /healthz and GET /metrics report server state.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.String("http-addr", defaults.HTTP.Addr, "the host:port address to serve the HTTP server on")
	flags.Duration("http-read-timeout", defaults.HTTP.ReadTimeout, "the maximum duration for reading a request")
	flags.Duration("http-write-timeout", defaults.HTTP.WriteTimeout, "the maximum duration for writing a response")
	flags.Duration("http-shutdown-timeout", defaults.HTTP.ShutdownTimeout, "the maximum duration to wait for in-flight requests on shutdown")
	flags.Int("max-concurrent-builds", defaults.HTTP.MaxConcurrentBuilds, "the maximum number of documents built at once")
	flags.Duration("acquire-timeout", defaults.HTTP.AcquireTimeout, "how long a request waits for a build slot before failing with 429")
	flags.Int64("max-body-bytes", defaults.HTTP.MaxBodyBytes, "the maximum size of a document request")

	cmd.PreRun = func(*cobra.Command, []string) {
		mustBindPFlag("http.addr", flags.Lookup("http-addr"))
		mustBindEnv("http.addr", "XLBUILD_HTTP_ADDR")
		mustBindPFlag("http.readTimeout", flags.Lookup("http-read-timeout"))
		mustBindEnv("http.readTimeout", "XLBUILD_HTTP_READ_TIMEOUT")
		mustBindPFlag("http.writeTimeout", flags.Lookup("http-write-timeout"))
		mustBindEnv("http.writeTimeout", "XLBUILD_HTTP_WRITE_TIMEOUT")
		mustBindPFlag("http.shutdownTimeout", flags.Lookup("http-shutdown-timeout"))
		mustBindEnv("http.shutdownTimeout", "XLBUILD_HTTP_SHUTDOWN_TIMEOUT")
		mustBindPFlag("http.maxConcurrentBuilds", flags.Lookup("max-concurrent-builds"))
		mustBindEnv("http.maxConcurrentBuilds", "XLBUILD_HTTP_MAX_CONCURRENT_BUILDS")
		mustBindPFlag("http.acquireTimeout", flags.Lookup("acquire-timeout"))
		mustBindEnv("http.acquireTimeout", "XLBUILD_HTTP_ACQUIRE_TIMEOUT")
		mustBindPFlag("http.maxBodyBytes", flags.Lookup("max-body-bytes"))
		mustBindEnv("http.maxBodyBytes", "XLBUILD_HTTP_MAX_BODY_BYTES")
	}
	bindBuildFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg.HTTP, cfg.Options(log), log).Run(ctx)
}
