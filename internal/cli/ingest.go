package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
)

var ingestDryRun bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <installation>",
	Short: "Fold game folder changes back into the loadout",
	Long: `Record files added, changed or removed in the game folder as a new loadout
version. New game-folder files go to the "Overrides" mod and new saves to the
"Saved Games" mod.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Ingest(context.Background(), &engine.IngestRequest{
			Installation: args[0],
			DryRun:       ingestDryRun,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			out := map[string]any{
				"dryRun":  ingestDryRun,
				"steps":   stepViews(result.Plan.Steps),
				"merged":  result.Merged,
				"skipped": result.Skipped,
			}
			if result.Loadout != nil {
				out["version"] = result.Loadout.Version
			}
			return outputJSON(out)
		}

		for _, p := range result.Skipped {
			PrintWarning(fmt.Sprintf("skipped unreadable %s", p))
		}

		if result.Plan.IsEmpty() {
			PrintSuccess("Loadout already matches the game folder")
			return nil
		}

		if ingestDryRun {
			PrintSection("Dry Run")
			PrintInfo(fmt.Sprintf("Would ingest %s", PrintCount(len(result.Plan.Steps), "step", "steps")))
			printSteps(result.Plan.Steps)
			return nil
		}

		PrintSuccess(fmt.Sprintf("Ingested %s", PrintCount(len(result.Plan.Steps), "step", "steps")))
		printStepCounts(result.Plan.Steps)
		PrintLabelValue("Version", result.Loadout.Version.Short())
		if result.Merged {
			PrintWarning("The loadout changed since the last apply; run 'modsync apply' to sync the merged version.")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Show what would be ingested without changing the loadout")
}
