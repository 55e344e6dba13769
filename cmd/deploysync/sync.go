package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deploysync/deploysync/internal/events"
	"github.com/deploysync/deploysync/internal/syncer"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "sync <project>",
		Short: "Analyze and upload changed files for a project",
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
			result, err := engine.Sync(cmd.Context(), project, message)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Uploaded) == 0 && len(result.Deleted) == 0 {
				fmt.Fprintln(out, green("✓"), "everything up to date")
				return nil
			}

			fmt.Fprintf(out, "%s %d file(s) uploaded, %d deleted (%s sent, %.1f%% saved) in %s\n",
				green("✓"),
				len(result.Uploaded),
				len(result.Deleted),
				humanize.Bytes(uint64(result.Stats.TransferSize)),
				result.Stats.SavingsPercent,
				result.Duration.Round(time.Millisecond))
			if result.SnapshotID != "" {
				fmt.Fprintln(out, "  snapshot:", cyan(result.SnapshotID))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "snapshot message for this deploy")
	return cmd
}
