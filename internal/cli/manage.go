package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
)

var manageName string

var manageCmd = &cobra.Command{
	Use:   "manage <installation>",
	Short: "Bring a game installation under management",
	Long: `Index a configured installation, back up every file it contains and create
the first version of its loadout.

The loadout starts with a single "Game Files" mod holding the files found on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Manage(context.Background(), &engine.ManageRequest{
			Installation: args[0],
			LoadoutName:  manageName,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"loadout": result.Loadout.ID,
				"version": result.Loadout.Version,
				"files":   len(result.Snapshot.Entries),
			})
		}

		PrintSuccess(fmt.Sprintf("Managing %s", args[0]))
		PrintLabelValue("Loadout", fmt.Sprintf("%s (%s)", result.Loadout.Name, result.Loadout.ID.Short()))
		PrintLabelValue("Files", PrintCount(len(result.Snapshot.Entries), "file", "files"))
		return nil
	},
}

func init() {
	manageCmd.Flags().StringVarP(&manageName, "name", "n", "", "Loadout name (default: the installation name)")
}
