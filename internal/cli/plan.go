package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modsync/internal/engine"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/planner"
)

var planVersion string

var planCmd = &cobra.Command{
	Use:   "plan <installation>",
	Short: "Preview the steps an apply would run",
	Long: `Compare the game folder with the loadout and list the steps 'apply' would run,
along with any files changed outside modsync since the last sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := parseVersion(planVersion)
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Plan(context.Background(), &engine.PlanRequest{
			Installation: args[0],
			Version:      version,
		})
		if err != nil {
			return err
		}
		plan := result.Plan

		if jsonOutput {
			return outputJSON(map[string]any{
				"version":   plan.Loadout.Version,
				"steps":     stepViews(plan.Steps),
				"conflicts": conflictViews(plan.Conflicts),
			})
		}

		PrintSection(fmt.Sprintf("Plan for %s", plan.Loadout.Name))
		PrintLabelValue("Version", plan.Loadout.Version.Short())
		PrintLabelValue("Mods", PrintCount(len(plan.Sorted), "mod", "mods"))
		fmt.Println()

		if plan.IsEmpty() {
			PrintEmptyState("Nothing to do")
		} else {
			printStepCounts(plan.Steps)
			printSteps(plan.Steps)
		}
		if plan.HasConflicts() {
			printConflicts(plan.Conflicts)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planVersion, "version", "", "Plan this loadout version instead of the latest")
}

// stepView is the JSON form of a plan step.
type stepView struct {
	Kind        planner.StepKind `json:"kind"`
	Path        loadout.GamePath `json:"path"`
	Description string           `json:"description"`
}

func stepViews(steps []planner.Step) []stepView {
	out := make([]stepView, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepView{Kind: s.Kind(), Path: s.Target(), Description: planner.Describe(s)})
	}
	return out
}

type conflictView struct {
	Path   loadout.GamePath `json:"path"`
	Reason string           `json:"reason"`
}

func conflictViews(conflicts []planner.Conflict) []conflictView {
	out := make([]conflictView, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictView{Path: c.Change.Path, Reason: c.Reason()})
	}
	return out
}

func printSteps(steps []planner.Step) {
	if len(steps) == 0 {
		return
	}
	PrintSubsection("Steps:")
	for _, s := range steps {
		_, _ = stepColor(s.Kind()).Fprintf(stdout(), "    %s\n", planner.Describe(s))
	}
}

// printStepCounts prints one row per step kind.
func printStepCounts(steps []planner.Step) {
	counts := planner.CountByKind(steps)
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		rows = append(rows, []string{k, fmt.Sprint(counts[planner.StepKind(k)])})
	}
	PrintTable([]string{"STEP", "COUNT"}, rows)
}

func printConflicts(conflicts []planner.Conflict) {
	PrintSection("Changed Outside modsync")
	for _, c := range conflicts {
		PrintError(fmt.Sprintf("%s: %s", c.Change.Path, c.Reason()))
	}
}
