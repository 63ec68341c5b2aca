package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/api"
	"github.com/webgenai/genctl/internal/protocol"
)

var runCmd = &cobra.Command{
	Use:   "run <description...>",
	Short: "Generate a new application from a description",
	Long: `Start a fresh generation run from a natural-language description and
follow its event stream until the run finishes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("domain", "", "Skip routing and generate for this domain directly")
	runCmd.Flags().String("planning-model", "", "Override the planning model")
	runCmd.Flags().String("implementer-model", "", "Override the implementer model")
	runCmd.Flags().String("fixer-model", "", "Override the fixer model")
	runCmd.Flags().Bool("detach", false, "Start the run without watching its event stream")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, cfg, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	runID, err := client.CreateRun(ctx)
	if err != nil {
		return err
	}
	logger.Info("run created", "run_id", runID)

	domain, _ := cmd.Flags().GetString("domain")
	planningModel, _ := cmd.Flags().GetString("planning-model")
	implementerModel, _ := cmd.Flags().GetString("implementer-model")
	fixerModel, _ := cmd.Flags().GetString("fixer-model")

	req := api.StartGenerateRequest{
		Description:      strings.Join(args, " "),
		DomainOverride:   domain,
		PlanningModel:    planningModel,
		ImplementerModel: implementerModel,
		FixerModel:       fixerModel,
	}

	if err := client.StartGenerate(ctx, runID, req); err != nil {
		return err
	}

	if detach, _ := cmd.Flags().GetBool("detach"); detach {
		fmt.Fprintf(out, "Run %s started. Attach with 'genctl watch %s'.\n", runID, runID)
		return nil
	}

	return watchRun(ctx, client, cfg, runID, protocol.RunKindGenerate, out, logger)
}
