package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var runTimeout time.Duration

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "Maximum time to wait for the workflow")
}

// runCmd sends a request through the workflow
var runCmd = &cobra.Command{
	Use:   "run [text|-]",
	Short: "Run a request through the workflow",
	Long: `Run a request through the brandflow workflow and print the execution.

Examples:
  # Run a request
  bfctl run "Schrijf een marketingplan voor Ebbinge"

  # Read the request from stdin
  cat briefing.txt | bfctl run -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflow,
}

// WorkflowRequest matches internal/http WorkflowRequest
type WorkflowRequest struct {
	InputAsText string `json:"input_as_text"`
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 && args[0] != "-" {
		text = args[0]
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return fmt.Errorf("no request text")
	}

	var raw json.RawMessage
	if err := doJSON(http.MethodPost, "/api/v1/workflow", WorkflowRequest{InputAsText: text}, http.StatusOK, runTimeout, &raw); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
