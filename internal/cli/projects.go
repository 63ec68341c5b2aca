package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage remote projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects stored on the server",
	Args:  cobra.NoArgs,
	RunE:  runProjectsList,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project from the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	projects, err := client.ListProjects(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects.")
		return nil
	}

	for _, p := range projects {
		fmt.Fprintf(out, "%s\t%s\n", p.ID, p.Title)
	}
	return nil
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	if err := client.DeleteProject(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
	return nil
}
