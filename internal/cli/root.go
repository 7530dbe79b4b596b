// Package cli implements the sparkcopilot command line: the long running
// service and the offline analysis tools built on the same pipeline.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the sparkcopilot command tree
func NewRootCmd(version, buildTime string) *cobra.Command {
	root := &cobra.Command{
		Use:   "sparkcopilot",
		Short: "Spark job optimization copilot",
		Long:  "sparkcopilot analyzes Spark job metrics with a graph of rule-based agents and serves the results over HTTP, WebSocket and gRPC.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("sparkcopilot version %s (built %s)\n", version, buildTime))

	root.AddCommand(NewServeCmd(version, buildTime))
	root.AddCommand(NewAnalyzeCmd())
	root.AddCommand(NewGraphCmd())

	return root
}
