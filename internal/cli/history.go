package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
)

var historyCmd = &cobra.Command{
	Use:   "history <installation>",
	Short: "List the versions of the loadout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.History(context.Background(), &engine.HistoryRequest{
			Installation: args[0],
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			type entry struct {
				Version string `json:"version"`
				Message string `json:"message"`
				Time    string `json:"time"`
				Mods    int    `json:"mods"`
				Applied bool   `json:"applied"`
			}
			out := make([]entry, 0, len(result.Versions))
			for _, v := range result.Versions {
				out = append(out, entry{
					Version: v.Version.String(),
					Message: v.Message,
					Time:    v.LastModified.Format(time.RFC3339),
					Mods:    len(v.Mods),
					Applied: v.Version == result.Applied,
				})
			}
			return outputJSON(out)
		}

		rows := make([][]string, 0, len(result.Versions))
		for _, v := range result.Versions {
			marker := ""
			if v.Version == result.Applied {
				marker = "*"
			}
			rows = append(rows, []string{
				marker,
				v.Version.Short(),
				v.LastModified.Local().Format("2006-01-02 15:04"),
				fmt.Sprint(len(v.Mods)),
				v.Message,
			})
		}
		PrintTable([]string{"", "VERSION", "DATE", "MODS", "MESSAGE"}, rows)
		return nil
	},
}
