// Command secure runs the admin impersonation and hardening service.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-secure/pkg/config"
)

func main() {
	os.Exit(Execute())
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "secure",
		Short:         "Admin impersonation and site hardening service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			loadEnvFile(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: .env next to the binary or in the working directory)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newPruneLogsCmd())
	return rootCmd
}

// loadConfig reads the environment, validates it and installs the default logger.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	slog.SetDefault(newLogger(cfg.LogFormat, cfg.LogLevel))
	return cfg, nil
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// loadEnvFile loads path, or a .env beside the executable, or one in the working directory.
func loadEnvFile(path string) {
	if path == "" {
		path = findEnvFile()
	}
	if path == "" {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", path)
	if err := godotenv.Load(path); err != nil {
		slog.Warn("Failed to load .env file", "path", path, "error", err)
	}
}

func findEnvFile() string {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
