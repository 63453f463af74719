package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/golutra/golutra/internal/workspace"
	"github.com/spf13/cobra"
)

func registryDir() string {
	if dir := os.Getenv("GOLUTRA_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "registry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".golutra", "registry")
	}
	return filepath.Join(home, ".golutra", "registry")
}

func openRegistry() (*workspace.Registry, error) {
	return workspace.Open(registryDir())
}

func main() {
	root := &cobra.Command{
		Use:   "golutractl",
		Short: "operator CLI for the golutra terminal orchestration daemon",
	}

	root.AddCommand(workspaceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "manage registered project workspaces",
	}
	cmd.AddCommand(workspaceRegisterCmd(), workspaceListCmd(), workspaceMoveCmd(), workspaceCopyCmd(), workspaceGCCmd())
	return cmd
}

func workspaceRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <project-id> <name> <path>",
		Short: "register a project id at a path, or verify an existing registration",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			absPath, err := filepath.Abs(args[2])
			if err != nil {
				return err
			}
			if err := r.Register(args[0], args[1], absPath); err != nil {
				if conflict, ok := err.(*workspace.ConflictError); ok {
					return fmt.Errorf("%s is already registered at %s (use 'move' or 'copy' to resolve)", conflict.ProjectID, conflict.LastKnownPath)
				}
				return err
			}
			fmt.Printf("registered %s at %s\n", args[0], absPath)
			return nil
		},
	}
}

func workspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list registered project workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			entries, err := r.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPATH\tLAST OPENED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ProjectID, e.Name, e.Path, e.LastOpenedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func workspaceMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <project-id> <new-path>",
		Short: "update a project's registered path after it moved on disk",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			absPath, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if err := r.Move(args[0], absPath); err != nil {
				return err
			}
			fmt.Printf("moved %s to %s\n", args[0], absPath)
			return nil
		},
	}
}

func workspaceCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <new-project-id> <name> <path>",
		Short: "register a second, independent project id for a copied-aside directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			absPath, err := filepath.Abs(args[2])
			if err != nil {
				return err
			}
			if err := r.Copy(args[0], args[1], absPath); err != nil {
				return err
			}
			fmt.Printf("registered copy %s at %s\n", args[0], absPath)
			return nil
		},
	}
}

func workspaceGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "remove stale registry entries whose path no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			removed, err := r.GC()
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Println("nothing to remove")
				return nil
			}
			for _, id := range removed {
				fmt.Printf("removed %s\n", id)
			}
			return nil
		},
	}
}
