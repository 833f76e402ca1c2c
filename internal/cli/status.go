package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status <installation>",
	Short: "Show installation status",
	Long:  `Display the applied loadout version and any files changed since the last sync.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Status(context.Background(), &engine.StatusRequest{
			Installation: args[0],
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			out := map[string]any{
				"installation": result.Installation,
				"managed":      result.Managed,
			}
			if result.Managed {
				out["loadout"] = result.Loadout.ID
				out["applied"] = result.Snapshot.Version
				out["head"] = result.Loadout.Version
				out["headMoved"] = result.HeadMoved
				out["txId"] = result.Snapshot.TxID
				out["changes"] = result.Changes
				out["unreadable"] = result.Unreadable
			}
			return outputJSON(out)
		}

		PrintLabelValue("Installation", result.Installation)
		if !result.Managed {
			PrintEmptyState("Not managed. Run 'modsync manage " + result.Installation + "' to start.")
			return nil
		}

		PrintLabelValue("Loadout", fmt.Sprintf("%s (%s)", result.Loadout.Name, result.Loadout.ID.Short()))
		PrintLabelValue("Applied", result.Snapshot.Version.Short())
		PrintLabelValue("Transaction", fmt.Sprint(result.Snapshot.TxID))
		if result.HeadMoved {
			PrintLabelValueWithColor("Latest", result.Loadout.Version.Short()+" (not applied)", warningColor)
		}

		if len(result.Changes) == 0 && len(result.Unreadable) == 0 {
			PrintSuccess("Game folder matches the last sync")
			return nil
		}

		PrintSection("Changed Since Last Sync")
		for _, c := range result.Changes {
			_, _ = changeColor(c.Kind).Fprintf(stdout(), "  %-8s %s\n", c.Kind, c.Path)
		}
		for _, p := range result.Unreadable {
			PrintWarning(fmt.Sprintf("unreadable %s", p))
		}
		return nil
	},
}
