package main

import (
	"fmt"
	"os"
	"time"

	clientcmd "github.com/hyperrixel/logos/internal/cmd/client"
	serverrun "github.com/hyperrixel/logos/internal/cmd/server"
	cfgpkg "github.com/hyperrixel/logos/internal/config"
	logpkg "github.com/hyperrixel/logos/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// initialize logger for CLI
	// Respect LOGOS_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("LOGOS_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "logos",
		Short: "Logos mission log CLI",
		Long:  "Logos is a single-binary mission log service. This CLI manages the server and talks to its HTTP API.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start logos server (HTTP API)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			logFile, _ := cmd.Flags().GetString("log-file")
			flushMs, _ := cmd.Flags().GetInt("flush-window-ms")
			queueLen, _ := cmd.Flags().GetInt("sub-queue-len")

			cfg, err := cfgpkg.Load(cfgPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if fsyncMode != "" {
				switch fsyncMode {
				case "always", "interval", "never":
					cfg.Fsync = fsyncMode
				default:
					return fmt.Errorf("invalid --fsync; use always|interval|never")
				}
			}
			if fsyncIntervalMs > 0 {
				cfg.FsyncIntervalMs = fsyncIntervalMs
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			if logFile != "" {
				cfg.Log.File = logFile
			}
			if flushMs > 0 {
				cfg.FlushWindowMs = flushMs
			}
			if queueLen > 0 {
				cfg.SubscriberQueueLen = queueLen
			}

			if err := serverrun.Run(cmd.Context(), serverrun.Options{
				DataDir:  dataDir,
				HTTPAddr: httpAddr,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", os.Getenv("LOGOS_CONFIG"), "Config file (JSON or YAML)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	serverStartCmd.Flags().String("log-level", os.Getenv("LOGOS_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("LOGOS_LOG_FORMAT"), "Log format: text|json (default text)")
	serverStartCmd.Flags().String("log-file", os.Getenv("LOGOS_LOG_FILE"), "Also append logs to this file")
	serverStartCmd.Flags().Int("flush-window-ms", 0, "Subscribe flush window in ms (default 0)")
	serverStartCmd.Flags().Int("sub-queue-len", 0, "Subscribe buffer size per stream (default 256)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// client commands (implemented in internal/cmd/client)
	rootCmd.AddCommand(
		clientcmd.NewEntryCommand(apiURL),
		clientcmd.NewTailCommand(apiURL),
		clientcmd.NewAdminCommand(apiURL),
		clientcmd.NewBlobCommand(apiURL),
		clientcmd.NewExportCommand(apiURL),
		clientcmd.NewArchiveCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("LOGOS_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
