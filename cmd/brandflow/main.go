// Brandflow dispatches marketing requests to brand-specific generation
// agents.
//
// A request is classified by brand (Ebbinge, Intelic, HRC), then by topic,
// and routed to a single generation stage or a short chain of them. The
// binary serves the workflow over HTTP or runs one request from the
// command line.
//
// Usage:
//
//	# Start the HTTP API
//	brandflow serve --config ~/.config/brandflow/config.yaml
//
//	# Run one request and print the execution record
//	brandflow run "Schrijf een marketingplan voor HRC"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "brandflow",
		Short:         "Brand and topic dispatch for marketing agents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/brandflow/config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "brandflow by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
