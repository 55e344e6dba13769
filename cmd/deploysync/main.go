package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploysync/deploysync/internal/config"
	"github.com/deploysync/deploysync/internal/version"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "deploysync",
	Short:         "Incremental project deployment with delta analysis, parallel transfer and version snapshots",
	Version:       version.Detailed(),
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().String("data-dir", "", "override the engine data directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

// setupLogging installs a tinted handler; plain text when stdout is not a tty.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

// loadConfig resolves the config file plus DEPLOYSYNC_* environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	path, _ := cmd.Flags().GetString("config")

	viper.SetEnvPrefix("DEPLOYSYNC")
	viper.AutomaticEnv()
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if dataDir := viper.GetString("data_dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	cmd.SilenceUsage = true
	return cfg, nil
}

// resolveProject maps a CLI argument to a configured project.
func resolveProject(cfg *config.Config, key string) (*config.Project, error) {
	p, ok := cfg.Project(key)
	if !ok {
		if len(cfg.Projects) == 0 {
			return nil, errors.New("no projects configured; add one with `deploysync project add`")
		}
		return nil, fmt.Errorf("unknown project %q", key)
	}
	return p, nil
}
