// Package main implements the bfctl CLI for manual operations against the brandflow HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the brandflow HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bfctl",
	Short: "CLI for brandflow HTTP server operations",
	Long: `bfctl is a command-line interface for interacting with the brandflow HTTP server.
It runs workflow requests, loads documents into corpora and checks server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9191", "brandflow server URL")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check brandflow server health",
	Long: `Check the health status of the brandflow HTTP server.

Examples:
  # Check health
  bfctl health

  # Check health on a different server
  bfctl health --server http://localhost:8080`,
	RunE: runHealth,
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status    string `json:"status"`
	Telemetry *struct {
		Reasons []string `json:"reasons"`
	} `json:"telemetry,omitempty"`
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var healthResp HealthResponse
	if err := doJSON(http.MethodGet, "/health", nil, http.StatusOK, 5*time.Second, &healthResp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", healthResp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	if healthResp.Telemetry != nil {
		for _, r := range healthResp.Telemetry.Reasons {
			fmt.Fprintf(out, "Telemetry: %s\n", r)
		}
	}
	return nil
}

// doJSON sends body (when non-nil) as JSON and decodes a response with
// status want into out.
func doJSON(method, path string, body any, want int, timeout time.Duration, out any) error {
	var reader io.Reader
	if body != nil {
		reqJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqJSON)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
