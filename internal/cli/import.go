package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
)

var importCmd = &cobra.Command{
	Use:   "import <installation> <manifest>",
	Short: "Import mods from a TOML manifest",
	Long: `Back up the files of every mod declared in a TOML manifest and add or update
those mods in the installation's loadout. Nothing is written to the game folder
until the next apply.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Import(context.Background(), &engine.ImportRequest{
			Installation: args[0],
			ManifestPath: args[1],
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"version": result.Loadout.Version,
				"mods":    result.Mods,
			})
		}

		PrintSuccess(fmt.Sprintf("Imported %s", PrintCount(len(result.Mods), "mod", "mods")))
		PrintList(result.Mods, 1)
		PrintLabelValue("Version", result.Loadout.Version.Short())
		return nil
	},
}
