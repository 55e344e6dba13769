package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/deploysync/deploysync/internal/events"
	"github.com/deploysync/deploysync/internal/syncer"
	"github.com/deploysync/deploysync/internal/watcher"
)

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Watch the project tree and sync on every settled change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			project, err := resolveProject(cfg, args[0])
			if err != nil {
				return err
			}

			engine := syncer.NewEngine(cfg, events.SlogEmitter{}, nil)
			ctx := cmd.Context()

			w := watcher.New(project.LocalPath, debounce)
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintln(cmd.OutOrStdout(), cyan("watching"), project.LocalPath, "(ctrl-c to stop)")

			// initial pass picks up anything changed while not watching
			if _, err := engine.Sync(ctx, project, "watch: initial sync"); err != nil {
				slog.Error("sync failed", "project", project.ID, "error", err)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-w.Triggers():
					if _, err := engine.Sync(ctx, project, "watch: auto sync"); err != nil {
						slog.Error("sync failed", "project", project.ID, "error", err)
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "settle window before an auto sync")
	return cmd
}
