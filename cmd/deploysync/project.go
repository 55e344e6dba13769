package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deploysync/deploysync/internal/config"
	"github.com/deploysync/deploysync/internal/utils"
)

func init() {
	rootCmd.AddCommand(newProjectCmd())
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage configured projects",
	}
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectRemoveCmd())
	return cmd
}

func newProjectAddCmd() *cobra.Command {
	var p config.Project

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			p.Name = args[0]
			p.ID = uuid.NewString()

			localPath, err := utils.ResolvePath(p.LocalPath)
			if err != nil {
				return err
			}
			p.LocalPath = localPath

			if err := p.Validate(); err != nil {
				return err
			}
			if _, exists := cfg.Project(p.Name); exists {
				return fmt.Errorf("project %q already exists", p.Name)
			}

			cfg.Projects = append(cfg.Projects, p)
			if err := cfg.Save(cfg.Path); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), green("✓"), "added", p.Name, cyan(p.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&p.LocalPath, "local", "", "local project directory (required)")
	cmd.Flags().StringVar(&p.RemoteRoot, "remote", "", "remote root directory")
	cmd.Flags().StringVar(&p.Protocol, "protocol", "local", "transport protocol (ftp, sftp, local)")
	cmd.Flags().StringVar(&p.Host, "host", "", "remote host (or target directory for local protocol)")
	cmd.Flags().IntVar(&p.Port, "port", 0, "remote port")
	cmd.Flags().StringVar(&p.Username, "user", "", "remote username")
	cmd.Flags().StringVar(&p.Password, "password", "", "remote password")
	cmd.Flags().IntVar(&p.Connections, "connections", 0, "parallel connections (0 = default)")
	cmd.MarkFlagRequired("local")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if len(cfg.Projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects configured")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLOCAL\tPROTOCOL\tREMOTE")
			for _, p := range cfg.Projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.LocalPath, p.Protocol, p.RemoteRoot)
			}
			return w.Flush()
		},
	}
}

func newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <project>",
		Short: "Remove a project from the config (engine state is kept)",
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

			removedID, removedName := project.ID, project.Name
			kept := make([]config.Project, 0, len(cfg.Projects))
			for _, p := range cfg.Projects {
				if p.ID != removedID {
					kept = append(kept, p)
				}
			}
			cfg.Projects = kept

			if err := cfg.Save(cfg.Path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("✓"), "removed", removedName)
			return nil
		},
	}
}
