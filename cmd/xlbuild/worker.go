package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/transport"
)

// newWorkerCommand serves one document worker over stdin and stdout. It is started
// by process isolation and not meant to be run by hand.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Serve a document worker over stdin and stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE:   runWorker,
	}
}

func runWorker(*cobra.Command, []string) error {
	cfg := transport.ConfigFromEnv()

	level := os.Getenv("XLBUILD_LOG_LEVEL")
	if level == "" {
		level = "error"
	}
	// stdout carries protocol messages, so logs go to stderr as JSON
	log, err := logger.NewLogger("json", level)
	if err != nil {
		log = logger.NewNoopLogger()
	}
	cfg.Logger = log

	return transport.ServeStdio(os.Stdin, os.Stdout, cfg)
}
