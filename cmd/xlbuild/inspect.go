package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/reader"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [input.xlsx]",
		Short: "Print the sheets and rows of an xlsx document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	cmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	cmd.Flags().Bool("pretty", false, "pretty-print JSON output")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	wb, err := reader.Inspect(inputPath)
	if err != nil {
		return fmt.Errorf("inspection failed: %w", err)
	}

	pretty, _ := cmd.Flags().GetBool("pretty")
	var data []byte
	if pretty {
		data, err = json.MarshalIndent(wb, "", "  ")
	} else {
		data, err = json.Marshal(wb)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
