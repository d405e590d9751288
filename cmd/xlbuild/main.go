// Package main provides the CLI entry point for xlbuild.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
