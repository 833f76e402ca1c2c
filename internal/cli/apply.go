package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
)

var (
	applyVersion string
	applyForce   bool
	applyDryRun  bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <installation>",
	Short: "Write the loadout to the game folder",
	Long: `Make the game folder match the installation's loadout.

Files that would be overwritten or deleted are backed up first. If files changed
outside modsync since the last sync, apply stops; use --force to proceed, or run
'ingest' to keep those changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := parseVersion(applyVersion)
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Apply(context.Background(), &engine.ApplyRequest{
			Installation: args[0],
			Version:      version,
			Force:        applyForce,
			DryRun:       applyDryRun,
		})
		if err != nil {
			if result != nil && result.Plan != nil && result.Plan.HasConflicts() && !jsonOutput {
				printConflicts(result.Plan.Conflicts)
				fmt.Println()
				PrintWarning("Use --force to override, or 'modsync ingest' to keep the changes.")
			}
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"dryRun":    applyDryRun,
				"steps":     stepViews(result.Plan.Steps),
				"executed":  len(result.Executed),
				"conflicts": conflictViews(result.Plan.Conflicts),
			})
		}

		if applyDryRun {
			PrintSection("Dry Run")
			PrintInfo(fmt.Sprintf("Would run %s", PrintCount(len(result.Plan.Steps), "step", "steps")))
			printSteps(result.Plan.Steps)
			return nil
		}

		if len(result.Executed) == 0 {
			PrintSuccess("Game folder already matches the loadout")
			return nil
		}
		PrintSuccess(fmt.Sprintf("Applied %s", PrintCount(len(result.Executed), "step", "steps")))
		printStepCounts(result.Executed)
		PrintLabelValue("Version", result.Plan.Loadout.Version.Short())
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyVersion, "version", "", "Apply this loadout version instead of the latest")
	applyCmd.Flags().BoolVarP(&applyForce, "force", "f", false, "Apply over files changed outside modsync")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Show what would be applied without applying")
}
