package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [document.json]",
		Short: "Build an xlsx document from a JSON document definition",
		Long: `Build an xlsx document from a JSON document definition.

The definition is read from the given file, or from stdin when the argument is
"-". The written path is printed on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: runBuild,
	}

	cmd.Flags().StringP("output", "o", "", "output file path (default: the document name, then test.xlsx)")
	bindBuildFlags(cmd)
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	doc, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}

	b, err := xlbuild.New(doc, cfg.Options(log))
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	defer b.Close()

	if err := logEvents(b, log); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	outputPath, _ := cmd.Flags().GetString("output")
	path, err := b.ToFile(ctx, outputFile(outputPath, doc))
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func readDocument(cmd *cobra.Command, name string) (models.Document, error) {
	var r io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return models.Document{}, fmt.Errorf("file not found: %s", name)
		}
		defer f.Close()
		r = f
	}
	return models.DecodeDocument(r)
}

// outputFile picks the destination: the flag, then the document name, then the
// default file name. A missing .xlsx extension is added.
func outputFile(flag string, doc models.Document) string {
	path := flag
	if path == "" {
		path = doc.Name
	}
	if path == "" {
		return xlbuild.DefaultFileName
	}
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		path += ".xlsx"
	}
	return path
}

func logEvents(b xlbuild.Builder, log logger.Logger) error {
	for _, kind := range xlbuild.EventKinds {
		_, err := b.Subscribe(kind, func(ev xlbuild.Event) {
			if ev.Err != nil {
				log.Error("build event", zap.String("event", string(ev.Kind)), zap.Error(ev.Err))
				return
			}
			log.Debug("build event",
				zap.String("event", string(ev.Kind)),
				zap.String("sheet", ev.Sheet),
				zap.String("path", ev.Path),
			)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
