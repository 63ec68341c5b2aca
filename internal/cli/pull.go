package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/fsutil"
	"github.com/webgenai/genctl/internal/reconcile"
)

// manifestFileName is written alongside the exported files so a later
// run can tell what was pulled and whether anything changed on disk.
const manifestFileName = "genctl-manifest.json"

type exportManifest struct {
	ProjectID  string                `json:"project_id"`
	Title      string                `json:"title"`
	ExportedAt time.Time             `json:"exported_at"`
	Files      []fsutil.ExportedFile `json:"files"`
}

var pullCmd = &cobra.Command{
	Use:   "pull <project-id>",
	Short: "Export a project's files to a local directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func init() {
	pullCmd.Flags().StringP("out", "o", ".", "Directory to export the files into")
}

func runPull(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	project, err := client.GetProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exporting %s (%s) to %s\n", project.Title, project.ID, outDir)

	manifest := exportManifest{
		ProjectID:  project.ID,
		Title:      project.Title,
		ExportedAt: time.Now().UTC(),
	}

	for _, f := range reconcile.NormalizeFiles(project.Files) {
		exported, err := fsutil.ExportFile(outDir, f.Name, []byte(f.Content))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s (%d bytes, %s)\n", exported.Path, exported.Size, exported.SHA256)
		manifest.Files = append(manifest.Files, exported)
	}

	manifestPath := filepath.Join(outDir, manifestFileName)
	if err := fsutil.AtomicWriteJSON(manifestPath, manifest); err != nil {
		return fmt.Errorf("failed to write export manifest: %w", err)
	}
	fmt.Fprintf(out, "Wrote %s\n", manifestFileName)

	return nil
}
