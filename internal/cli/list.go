package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured installations",
	Long:  `Display every installation declared in the config file and whether it is managed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.ListInstallations(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result.Installations)
		}

		if len(result.Installations) == 0 {
			PrintInfo("No installations configured")
			return nil
		}

		rows := make([][]string, 0, len(result.Installations))
		for _, inst := range result.Installations {
			if !inst.Managed {
				rows = append(rows, []string{inst.Name, inst.Game, "-", "-", "-"})
				continue
			}
			rows = append(rows, []string{inst.Name, inst.Game, inst.LoadoutName, fmt.Sprint(inst.Mods), fmt.Sprint(inst.TxID)})
		}
		PrintTable([]string{"NAME", "GAME", "LOADOUT", "MODS", "TX"}, rows)
		return nil
	},
}
