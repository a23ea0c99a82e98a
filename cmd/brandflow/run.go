package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/brandflow/internal/workflow"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [text|-]",
		Short: "Run one request through the workflow",
		Long: `Run one request through the workflow and print the execution as JSON.

Examples:
  brandflow run "Bedenk een campagneconcept voor Intelic"
  echo "Marketingplan voor HRC" | brandflow run -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer func() { _ = a.Close(context.Background()) }()

			exec, runErr := a.engine.Run(cmd.Context(), workflow.Input{InputAsText: text})
			if exec != nil {
				if err := writeExecution(cmd.OutOrStdout(), exec); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

// inputText reads the request from args, or stdin for "-" or no args.
func inputText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func writeExecution(w io.Writer, exec *workflow.Execution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exec)
}
