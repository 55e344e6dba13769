package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deploysync/deploysync/internal/history"
	"github.com/deploysync/deploysync/internal/syncer"
)

func init() {
	rootCmd.AddCommand(newSnapshotsCmd())
}

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect and restore version snapshots",
	}
	cmd.AddCommand(newSnapshotsListCmd())
	cmd.AddCommand(newSnapshotsDiffCmd())
	cmd.AddCommand(newSnapshotsRestoreCmd())
	return cmd
}

func newSnapshotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List retained snapshots, oldest first",
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

			engine := syncer.NewEngine(cfg, nil, nil)
			hist, err := engine.History().Load(project.ID)
			if err != nil {
				return err
			}

			summaries := hist.List()
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tFILES\tSIZE\tMESSAGE")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					s.ID,
					humanize.Time(s.Timestamp),
					s.FilesCount,
					humanize.Bytes(uint64(s.TotalSize)),
					s.Message)
			}
			return w.Flush()
		},
	}
}

func newSnapshotsDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <project> <older-id> <newer-id>",
		Short: "Compare two snapshots",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			project, err := resolveProject(cfg, args[0])
			if err != nil {
				return err
			}

			engine := syncer.NewEngine(cfg, nil, nil)
			hist, err := engine.History().Load(project.ID)
			if err != nil {
				return err
			}

			older := hist.GetSnapshot(args[1])
			newer := hist.GetSnapshot(args[2])
			if older == nil || newer == nil {
				return fmt.Errorf("snapshot not found")
			}

			diff := history.CompareSnapshots(older, newer)
			out := cmd.OutOrStdout()
			for _, p := range diff.Added {
				fmt.Fprintln(out, green("A"), p)
			}
			for _, p := range diff.Modified {
				fmt.Fprintln(out, yellow("M"), p)
			}
			for _, p := range diff.Deleted {
				fmt.Fprintln(out, red("D"), p)
			}
			fmt.Fprintf(out, "%d added, %d modified, %d deleted, %d unchanged\n",
				len(diff.Added), len(diff.Modified), len(diff.Deleted), len(diff.Unchanged))
			return nil
		},
	}
}

func newSnapshotsRestoreCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "restore <project> <snapshot-id> [pattern...]",
		Short: "Restore snapshot files from their backups into the project tree",
		Long: "Restore files captured in a snapshot back into the local tree. Optional\n" +
			"glob patterns (doublestar, e.g. 'assets/**') restrict the restored subset.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			project, err := resolveProject(cfg, args[0])
			if err != nil {
				return err
			}

			engine := syncer.NewEngine(cfg, nil, nil)
			hist, err := engine.History().Load(project.ID)
			if err != nil {
				return err
			}

			snapshot := hist.GetSnapshot(args[1])
			if snapshot == nil {
				return fmt.Errorf("snapshot %s not found", args[1])
			}

			if target == "" {
				target = project.LocalPath
			}

			restored, err := history.RestoreSnapshot(snapshot, target, args[2:])
			if err != nil {
				return err
			}

			for _, p := range restored {
				fmt.Fprintln(cmd.OutOrStdout(), green("restored"), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) restored to %s\n", len(restored), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "restore into this directory instead of the project tree")
	return cmd
}
