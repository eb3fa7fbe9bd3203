package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Create and inspect workspaces",
}

func init() {
	workspaceCmd.AddCommand(workspaceCreateCmd, workspaceGetCmd, workspaceRenameCmd, workspaceSlugCmd)
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <slug> <name>",
	Short: "Create a workspace owned by the token's identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := newClient().CreateWorkspace(cmd.Context(), args[1], args[0])
		if err != nil {
			return explain(err)
		}
		if outFormat == "json" {
			return printJSON(cmd.OutOrStdout(), w)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s at %s\n", w.Slug, w.Hostname)
		return nil
	},
}

var workspaceGetCmd = &cobra.Command{
	Use:   "get <slug>",
	Short: "Show a workspace and its domains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := newClient().GetWorkspace(cmd.Context(), args[0])
		if err != nil {
			return explain(err)
		}
		if outFormat == "json" {
			return printJSON(cmd.OutOrStdout(), w)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n%s\n\n", w.Name, w.Slug, w.Hostname)
		printDomains(out, w.Domains)
		return nil
	},
}

var workspaceRenameCmd = &cobra.Command{
	Use:   "rename <slug> <name>",
	Short: "Change the display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().RenameWorkspace(cmd.Context(), args[0], args[1]); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "renamed %s\n", args[0])
		return nil
	},
}

var workspaceSlugCmd = &cobra.Command{
	Use:   "set-slug <slug> <new-slug>",
	Short: "Move the workspace to a new subdomain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, err := newClient().ChangeSlug(cmd.Context(), args[0], args[1])
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], slug)
		return nil
	},
}
