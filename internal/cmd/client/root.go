package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the spyglass client.
// It registers the logs, metrics, and events command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "spyglass",
		Short: "Spyglass client commands",
	}
	root.AddCommand(NewLogsCommand(baseURL))
	root.AddCommand(NewMetricsCommand(baseURL))
	root.AddCommand(NewEventsCommand(baseURL))
	return root
}
