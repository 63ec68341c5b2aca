package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/api"
	"github.com/webgenai/genctl/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "genctl",
	Short: "Client for the remote app-generation pipeline",
	Long: `genctl drives a remote generation service: it starts generation and
modification runs, follows their event streams, and keeps a local view
of the resulting project in step with the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(telemetryCmd)
	rootCmd.AddCommand(artifactCmd)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to genctl.json config file (default: search up directory tree)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

// Execute runs the root command. Cancelling ctx interrupts whatever
// the active command is doing, including an open event stream.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// newLogger builds the CLI logger from the --log-level flag
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if s, err := cmd.Flags().GetString("log-level"); err == nil {
		switch s {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig resolves the configuration for a command: an explicit
// --config path wins, otherwise the directory tree is searched upward
// for genctl.json.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}

	if configPath == "" {
		configPath, err = findConfigInTree()
		if err != nil {
			return nil, "", err
		}
		if configPath == "" {
			return nil, "", fmt.Errorf("no %s found; run 'genctl init' first", config.DefaultFileName)
		}
	}

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, configPath, nil
}

// newClient builds the API client for a command
func newClient(cmd *cobra.Command, logger *slog.Logger) (*api.Client, *config.Config, error) {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("loaded configuration", "path", path)

	return api.NewClient(cfg.ServerURL, cfg.ResolveToken(), logger), cfg, nil
}

// findConfigInTree searches up the directory tree for genctl.json
func findConfigInTree() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		configPath := filepath.Join(dir, config.DefaultFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", nil
}
