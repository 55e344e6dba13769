package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deploysync/deploysync/internal/resume"
	"github.com/deploysync/deploysync/internal/syncer"
)

func init() {
	rootCmd.AddCommand(newSessionsCmd())
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean up transfer sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsCleanupCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transfer sessions across all projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			engine := syncer.NewEngine(cfg, nil, nil)
			ledger, err := engine.Sessions().Load()
			if err != nil {
				return err
			}

			if len(ledger.Sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROJECT\tSTARTED\tFILES\tRESUMABLE\tSTATE")
			for _, s := range ledger.Sessions {
				state := yellow("open")
				if s.Completed {
					state = green("completed")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					s.ID,
					s.ProjectID,
					humanize.Time(s.StartedAt),
					len(s.Files),
					len(s.ResumableFiles()),
					state)
			}
			return w.Flush()
		},
	}
}

func newSessionsCleanupCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old completed sessions from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			engine := syncer.NewEngine(cfg, nil, nil)
			ledger, err := engine.Sessions().Load()
			if err != nil {
				return err
			}

			removed := ledger.Cleanup(maxAge, time.Now().UTC())
			if removed > 0 {
				if err := engine.Sessions().Save(ledger); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d session(s) removed\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", resume.DefaultCleanupAge, "remove completed sessions older than this")
	return cmd
}
