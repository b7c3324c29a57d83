package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/opaline-ai/spyglass/pkg/client"
)

// NewLogsCommand constructs the `logs` command group.
func NewLogsCommand(baseURL BaseURLFunc) *cobra.Command {
	logsCmd := &cobra.Command{Use: "logs", Short: "Log operations"}
	logsCmd.AddCommand(
		newLogsTailCommand(baseURL),
		newLogsGetCommand(baseURL),
	)
	return logsCmd
}

// newLogsTailCommand constructs `logs tail`: follow the live stream and
// print one JSON object per event until interrupted.
func newLogsTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail the live diagnostics stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			withTelemetry, _ := cmd.Flags().GetBool("telemetry")
			withTrace, _ := cmd.Flags().GetBool("trace")

			streamURL := wsURL(baseURL())
			if filter != "" {
				streamURL += "?filter=" + url.QueryEscape(filter)
			}
			c := client.New(client.Options{URL: streamURL})
			defer c.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			cb := client.Callbacks{
				OnLog: func(rec client.LogRecord) {
					_ = enc.Encode(map[string]any{"type": "log", "log": rec})
				},
				OnLogBatch: func(recs []client.LogRecord) {
					_ = enc.Encode(map[string]any{"type": "logs", "logs": recs})
				},
				OnError: func(err error) {
					_ = enc.Encode(map[string]any{"type": "error", "error": err.Error()})
				},
				OnStateChange: func(st client.State) {
					fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", st)
				},
			}
			if withTelemetry {
				cb.OnTelemetry = func(snap client.TelemetrySnapshot) {
					_ = enc.Encode(map[string]any{"type": "telemetry", "telemetry": snap})
				}
			}
			if withTrace {
				cb.OnTrace = func(entry client.TraceEntry) {
					_ = enc.Encode(map[string]any{"type": "trace_entry", "trace": entry})
				}
			}
			unsubscribe := c.Subscribe(cb)
			defer unsubscribe()

			<-cmd.Context().Done()
			return nil
		},
	}
	tailCmd.Flags().String("filter", "", "CEL filter expression (e.g. 'type == \"log\"')")
	tailCmd.Flags().Bool("telemetry", false, "Also print telemetry snapshots")
	tailCmd.Flags().Bool("trace", false, "Also print reasoning-trace entries")
	return tailCmd
}

// newLogsGetCommand constructs `logs get`: poll the REST fallback.
func newLogsGetCommand(baseURL BaseURLFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch recent retained logs over REST",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			u := baseURL() + "/diagnostics/logs"
			if limit > 0 {
				u += fmt.Sprintf("?limit=%d", limit)
			}
			return getJSON(cmd.OutOrStdout(), u)
		},
	}
	getCmd.Flags().Int("limit", 0, "Maximum number of events (0 = server default)")
	return getCmd
}
