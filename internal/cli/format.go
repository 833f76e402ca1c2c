package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/danieljhkim/modsync/internal/planner"
	"github.com/danieljhkim/modsync/internal/state"
)

var (
	// fatih/color disables these when stdout is not a TTY or NO_COLOR is set.
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
)

// stdout and stderr are read at call time so tests can swap os.Stdout.
func stdout() io.Writer { return os.Stdout }
func stderr() io.Writer { return os.Stderr }

// PrintSection prints a section header surrounded by blank lines.
func PrintSection(title string) {
	fmt.Fprintln(stdout())
	_, _ = headerColor.Fprintf(stdout(), "▸ %s\n", title)
	fmt.Fprintln(stdout())
}

func PrintSubsection(title string) {
	_, _ = infoColor.Fprintf(stdout(), "  %s\n", title)
}

func PrintSuccess(msg string) {
	_, _ = successColor.Fprintf(stdout(), "✓ %s\n", msg)
}

func PrintWarning(msg string) {
	_, _ = warningColor.Fprintf(stdout(), "⚠ %s\n", msg)
}

// PrintError prints to stderr.
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(stderr(), "✗ %s\n", msg)
}

func PrintInfo(msg string) {
	fmt.Fprintln(stdout(), msg)
}

func PrintEmptyState(msg string) {
	_, _ = valueColor.Fprintf(stdout(), "  %s\n", msg)
}

// PrintLabelValue prints "label: value" with a dimmed value.
func PrintLabelValue(label, value string) {
	PrintLabelValueWithColor(label, value, valueColor)
}

func PrintLabelValueWithColor(label, value string, valueClr *color.Color) {
	_, _ = labelColor.Fprintf(stdout(), "  %s: ", label)
	_, _ = valueClr.Fprintln(stdout(), value)
}

// PrintList prints bulleted items, indented by indent levels.
func PrintList(items []string, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Fprintf(stdout(), "%s• %s\n", pad, item)
	}
}

func PrintNumberedList(items []string, indent int) {
	pad := strings.Repeat("  ", indent)
	for i, item := range items {
		_, _ = infoColor.Fprintf(stdout(), "%s%d. %s\n", pad, i+1, item)
	}
}

// PrintTable prints rows under headers with columns padded to the widest
// cell. Extra cells in a row are dropped.
func PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], len(row[i]))
		}
	}

	w := stdout()
	printRow := func(cells []string, clr *color.Color) {
		fmt.Fprint(w, "  ")
		for i := 0; i < len(cells) && i < len(widths); i++ {
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			_, _ = clr.Fprintf(w, "%-*s", widths[i], cells[i])
		}
		fmt.Fprintln(w)
	}

	printRow(headers, headerColor)
	rules := make([]string, len(widths))
	for i, width := range widths {
		rules[i] = strings.Repeat("-", width)
	}
	printRow(rules, color.New(color.Reset))
	for _, row := range rows {
		printRow(row, valueColor)
	}
}

// PrintCount formats a count with the singular or plural noun.
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// stepColor colors plan output by what a step does to the disk or loadout.
func stepColor(kind planner.StepKind) *color.Color {
	switch kind {
	case planner.KindDeleteFile, planner.KindRemoveFromLoadout:
		return errorColor
	case planner.KindExtractFile, planner.KindGenerateFile, planner.KindCreateInLoadout:
		return successColor
	case planner.KindReplaceInLoadout:
		return warningColor
	default:
		return valueColor
	}
}

func changeColor(kind state.ChangeKind) *color.Color {
	switch kind {
	case state.ChangeAdded:
		return successColor
	case state.ChangeRemoved:
		return errorColor
	default:
		return warningColor
	}
}
