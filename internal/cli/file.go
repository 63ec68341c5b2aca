package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/fsutil"
	"github.com/webgenai/genctl/internal/mirror"
	"github.com/webgenai/genctl/internal/mutate"
	"github.com/webgenai/genctl/internal/persist"
	"github.com/webgenai/genctl/internal/reconcile"
)

// maxLocalFileBytes bounds file content read from disk for 'file add'
const maxLocalFileBytes = 4 * 1024 * 1024

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Edit a project's files on the server",
	Long: `Structural file edits (add, rm, mv) validate against the current
project snapshot before touching the server, so name collisions fail
fast without a round trip.`,
}

var fileAddCmd = &cobra.Command{
	Use:   "add <project-id> <name>",
	Short: "Add a file to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runFileAdd,
}

var fileRmCmd = &cobra.Command{
	Use:   "rm <project-id> <name>",
	Short: "Remove a file from a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runFileRm,
}

var fileMvCmd = &cobra.Command{
	Use:   "mv <project-id> <old-name> <new-name>",
	Short: "Rename a file within a project",
	Args:  cobra.ExactArgs(3),
	RunE:  runFileMv,
}

var filePutCmd = &cobra.Command{
	Use:   "put <project-id> <name>",
	Short: "Replace a file's content",
	Long: `Replace the content of an existing file. The edit goes through the
same write path an editor would use: applied locally first, then
persisted remotely, with the local copy restored if the server rejects
the write.`,
	Args: cobra.ExactArgs(2),
	RunE: runFilePut,
}

func init() {
	fileCmd.AddCommand(fileAddCmd)
	fileCmd.AddCommand(fileRmCmd)
	fileCmd.AddCommand(fileMvCmd)
	fileCmd.AddCommand(filePutCmd)

	fileAddCmd.Flags().String("from", "", "Read the file's content from this local path")
	filePutCmd.Flags().String("from", "", "Read the new content from this local path (default: stdin)")
}

// newCoordinator fetches the current project snapshot and builds a
// mutation coordinator over it.
func newCoordinator(cmd *cobra.Command, projectID string, logger *slog.Logger) (*mutate.Coordinator, error) {
	client, _, err := newClient(cmd, logger)
	if err != nil {
		return nil, err
	}

	project, err := client.GetProject(cmd.Context(), projectID)
	if err != nil {
		return nil, err
	}

	mir := mirror.New()
	messages := make([]mirror.Message, 0, len(project.Messages))
	for _, msg := range project.Messages {
		messages = append(messages, mirror.Message{ID: msg.ID, Content: msg.Content, FromUser: msg.FromUser})
	}
	mir.Replace(project.ID, project.Title, reconcile.NormalizeFiles(project.Files), messages)

	return mutate.NewCoordinator(client, mir, logger), nil
}

func runFileAdd(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	projectID, name := args[0], args[1]

	content := ""
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		data, err := fsutil.ReadFileSafe(cwd, from, maxLocalFileBytes)
		if err != nil {
			return err
		}
		content = string(data)
	}

	coord, err := newCoordinator(cmd, projectID, logger)
	if err != nil {
		return err
	}

	if err := coord.AddFile(cmd.Context(), name, content); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s to project %s\n", name, projectID)
	return nil
}

func runFilePut(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	projectID, name := args[0], args[1]

	var content string
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		data, err := fsutil.ReadFileSafe(cwd, from, maxLocalFileBytes)
		if err != nil {
			return err
		}
		content = string(data)
	} else {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxLocalFileBytes))
		if err != nil {
			return fmt.Errorf("failed to read content from stdin: %w", err)
		}
		content = string(data)
	}

	client, cfg, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	project, err := client.GetProject(cmd.Context(), projectID)
	if err != nil {
		return err
	}

	mir := mirror.New()
	mir.Replace(project.ID, project.Title, reconcile.NormalizeFiles(project.Files), nil)

	buffer := persist.NewBuffer(client, mir, cfg.DebounceDelay(), logger)
	defer buffer.Close()

	if err := buffer.Update(projectID, name, content); err != nil {
		return err
	}
	if err := buffer.Flush(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s in project %s\n", name, projectID)
	return nil
}

func runFileRm(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	projectID, name := args[0], args[1]

	coord, err := newCoordinator(cmd, projectID, logger)
	if err != nil {
		return err
	}

	if err := coord.DeleteFile(cmd.Context(), name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from project %s\n", name, projectID)
	return nil
}

func runFileMv(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	projectID, oldName, newName := args[0], args[1], args[2]

	coord, err := newCoordinator(cmd, projectID, logger)
	if err != nil {
		return err
	}

	if err := coord.RenameFile(cmd.Context(), oldName, newName); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s in project %s\n", oldName, newName, projectID)
	return nil
}
