package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/checksum"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact <run-id>",
	Short: "Download the packaged artifact for a completed run",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifact,
}

func init() {
	artifactCmd.Flags().StringP("out", "o", "", "Output path (default: <run-id>.zip)")
	artifactCmd.Flags().Bool("verify", false, "Re-read the file after download and check it against the streamed checksum")
}

func runArtifact(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	runID := args[0]
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = runID + ".zip"
	}

	file, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}

	sw := checksum.NewSumWriter(file)
	n, err := client.DownloadArtifact(cmd.Context(), runID, sw)
	if err != nil {
		file.Close()
		os.Remove(outPath)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, %s)\n", outPath, n, sw.Sum())

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		if err := checksum.VerifyFile(outPath, sw.Sum()); err != nil {
			return fmt.Errorf("artifact verification failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Verified %s\n", outPath)
	}

	return nil
}
