package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
	"github.com/danieljhkim/modsync/internal/loadout"
)

var flattenVersion string

// flatEntry is one resolved path and the mod it comes from.
type flatEntry struct {
	Path loadout.GamePath `json:"path"`
	Mod  string           `json:"mod"`
}

var flattenCmd = &cobra.Command{
	Use:   "flatten <installation>",
	Short: "Show the resolved file list of the loadout",
	Long: `Sort the loadout's mods and list every file that would end up in the game
folder, with the mod that wins each path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := parseVersion(flattenVersion)
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Flatten(context.Background(), &engine.FlattenRequest{
			Installation: args[0],
			Version:      version,
		})
		if err != nil {
			return err
		}

		paths := result.Flattened.Paths()
		entries := make([]flatEntry, 0, len(paths))
		for _, p := range paths {
			e, _ := result.Flattened.Get(p)
			entries = append(entries, flatEntry{Path: p, Mod: e.Mod.Name})
		}

		order := make([]string, 0, len(result.Sorted))
		for _, m := range result.Sorted {
			order = append(order, m.Name)
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"version": result.Loadout.Version,
				"order":   order,
				"files":   entries,
			})
		}

		PrintSection("Sort Order")
		PrintNumberedList(order, 1)

		PrintSection("Files")
		if len(entries) == 0 {
			PrintEmptyState("No files")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Path.String(), e.Mod})
		}
		PrintTable([]string{"PATH", "MOD"}, rows)
		return nil
	},
}

func init() {
	flattenCmd.Flags().StringVar(&flattenVersion, "version", "", "Flatten this loadout version instead of the latest")
}
