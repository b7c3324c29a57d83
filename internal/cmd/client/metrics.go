package client

import (
	"github.com/spf13/cobra"
)

// NewMetricsCommand constructs the `metrics` command group.
func NewMetricsCommand(baseURL BaseURLFunc) *cobra.Command {
	metricsCmd := &cobra.Command{Use: "metrics", Short: "Telemetry operations"}
	metricsCmd.AddCommand(newMetricsGetCommand(baseURL))
	return metricsCmd
}

func newMetricsGetCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Fetch the latest telemetry snapshot over REST",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd.OutOrStdout(), baseURL()+"/diagnostics/metrics")
		},
	}
}
