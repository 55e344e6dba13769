package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deploysync/deploysync/internal/delta"
	"github.com/deploysync/deploysync/internal/syncer"
)

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
}

func newAnalyzeCmd() *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "analyze <project>",
		Short: "Show what a sync would transfer, without uploading",
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
			deltas, stats, err := engine.Analyze(cmd.Context(), project)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tFILE\tSIZE\tTRANSFER\tCHUNKS")
			for _, d := range deltas {
				if !showAll && !d.NeedsTransfer() && d.Status != delta.StatusDeleted {
					continue
				}
				chunks := ""
				if d.Status == delta.StatusModified {
					chunks = fmt.Sprintf("%d changed", len(d.ChangedChunks))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					statusLabel(d.Status),
					d.Path,
					humanize.Bytes(uint64(d.TotalSize)),
					humanize.Bytes(uint64(d.TransferSize)),
					chunks)
			}
			w.Flush()

			fmt.Fprintf(out, "\n%d file(s): %d new, %d modified, %d unchanged, %d deleted\n",
				stats.TotalFiles, stats.NewFiles, stats.ModifiedFiles, stats.UnchangedFiles, stats.DeletedFiles)
			fmt.Fprintf(out, "transfer %s of %s (%s saved)\n",
				humanize.Bytes(uint64(stats.TransferSize)),
				humanize.Bytes(uint64(stats.TotalSize)),
				green(fmt.Sprintf("%.1f%%", stats.SavingsPercent)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "include unchanged files")
	return cmd
}

func statusLabel(s delta.Status) string {
	switch s {
	case delta.StatusNew, delta.StatusSmallFile:
		return green(string(s))
	case delta.StatusModified:
		return yellow(string(s))
	case delta.StatusDeleted:
		return red(string(s))
	default:
		return string(s)
	}
}
