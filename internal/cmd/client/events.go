package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// NewEventsCommand constructs the `events` command group.
func NewEventsCommand(baseURL BaseURLFunc) *cobra.Command {
	eventsCmd := &cobra.Command{Use: "events", Short: "Event producer operations"}
	eventsCmd.AddCommand(newEventsSubmitCommand(baseURL))
	return eventsCmd
}

// newEventsSubmitCommand constructs `events submit`: publish one event
// into the stream as an external producer.
func newEventsSubmitCommand(baseURL BaseURLFunc) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an event to the diagnostics stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, _ := cmd.Flags().GetString("type")
			data, _ := cmd.Flags().GetString("data")

			var payload json.RawMessage
			if data != "" {
				if json.Valid([]byte(data)) {
					payload = json.RawMessage(data)
				} else {
					// Treat non-JSON input as a plain string payload.
					b, _ := json.Marshal(data)
					payload = b
				}
			}
			body, err := json.Marshal(map[string]any{
				"type":      typ,
				"data":      payload,
				"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			})
			if err != nil {
				return err
			}
			resp, err := http.Post(baseURL()+"/diagnostics/events", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(respBody))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s %s", resp.Status, respBody)
			return nil
		},
	}
	submitCmd.Flags().String("type", "log", "Event type: log|logs|telemetry|trace_entry|update|error")
	submitCmd.Flags().String("data", "", "Event payload (JSON, or a plain string)")
	return submitCmd
}
