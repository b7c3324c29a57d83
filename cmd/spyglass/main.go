package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/opaline-ai/spyglass/internal/cmd/client"
	serverrun "github.com/opaline-ai/spyglass/internal/cmd/server"
	cfgpkg "github.com/opaline-ai/spyglass/internal/config"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

func main() {
	// Respect SPYGLASS_LOG_LEVEL for both CLI and server start output.
	level := os.Getenv("SPYGLASS_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "spyglass",
		Short: "Spyglass diagnostics CLI",
		Long:  "Spyglass distributes real-time diagnostics from a cognitive core to connected observers. This CLI manages the server and basic client operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the spyglass server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			bufferCap, _ := cmd.Flags().GetInt("buffer-cap")
			heartbeatMs, _ := cmd.Flags().GetInt("heartbeat-ms")
			sampleMs, _ := cmd.Flags().GetInt("sample-ms")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// Structural knobs flow through the env overlay so flags,
			// env, and file agree on precedence.
			if bufferCap > 0 {
				_ = os.Setenv("SPYGLASS_BUFFER_CAP", fmt.Sprintf("%d", bufferCap))
			}
			if heartbeatMs > 0 {
				_ = os.Setenv("SPYGLASS_HEARTBEAT_MS", fmt.Sprintf("%d", heartbeatMs))
			}
			if sampleMs > 0 {
				_ = os.Setenv("SPYGLASS_SAMPLE_MS", fmt.Sprintf("%d", sampleMs))
			}
			if err := serverrun.Run(ctx, serverrun.Options{
				HTTPAddr:   httpAddr,
				ConfigPath: configPath,
				LogLevel:   logLevel,
				LogFormat:  logFormat,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("http", "", fmt.Sprintf("HTTP listen address (default %s)", cfgpkg.Default().HTTPAddr))
	serverStartCmd.Flags().String("config", os.Getenv("SPYGLASS_CONFIG"), "Config file path (JSON or YAML)")
	serverStartCmd.Flags().String("log-level", os.Getenv("SPYGLASS_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("SPYGLASS_LOG_FORMAT"), "Log format: text|json (default text)")
	serverStartCmd.Flags().Int("buffer-cap", 0, "Per-connection buffer capacity (default 100)")
	serverStartCmd.Flags().Int("heartbeat-ms", 0, "Heartbeat probe interval in ms (default 2000)")
	serverStartCmd.Flags().Int("sample-ms", 0, "Telemetry sampling interval in ms (default 5000)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// client command groups
	rootCmd.AddCommand(clientcmd.NewLogsCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewMetricsCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewEventsCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("SPYGLASS_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
