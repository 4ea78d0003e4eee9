// Package report renders script run results for the console.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/termscript/termscript/internal/script"
)

var (
	colorGreen  = lipgloss.Color("#2fd576")
	colorRed    = lipgloss.Color("#ff6b6b")
	colorYellow = lipgloss.Color("#f2c94c")
	colorGray   = lipgloss.Color("#9aa4b2")
	colorWhite  = lipgloss.Color("#e6edf3")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	passStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	stepStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
	diffStyle   = lipgloss.NewStyle().Foreground(colorYellow)
)

// Render formats a run result as a multi-line console report.
func Render(res *script.Result) string {
	var b strings.Builder

	verdict := passStyle.Render("PASS")
	if !res.Success {
		verdict = failStyle.Render("FAIL")
	}
	fmt.Fprintf(&b, "%s %s %s\n",
		verdict,
		headerStyle.Render(res.ScriptName),
		dimStyle.Render(fmt.Sprintf("(%d steps, %s)", len(res.Steps), round(res.TotalDuration))))

	for _, sr := range res.Steps {
		mark := passStyle.Render("✓")
		if !sr.Success {
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %s %s\n",
			mark,
			stepStyle.Render(describeStep(sr)),
			dimStyle.Render(round(sr.Duration)))

		if sr.Err != nil {
			fmt.Fprintf(&b, "      %s\n", failStyle.Render(sr.Err.Error()))
		}
		if sr.Assertion != nil && sr.Assertion.Diff != "" {
			for _, line := range strings.Split(strings.TrimRight(sr.Assertion.Diff, "\n"), "\n") {
				fmt.Fprintf(&b, "      %s\n", diffStyle.Render(line))
			}
		}
	}

	if res.ExitCode != nil {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf("exit code %d", *res.ExitCode)))
	}
	if !res.Success && res.FirstError != nil && len(res.Steps) == 0 {
		fmt.Fprintf(&b, "  %s\n", failStyle.Render(res.FirstError.Error()))
	}
	return b.String()
}

func describeStep(sr script.StepResult) string {
	return fmt.Sprintf("%2d %s", sr.Index+1, sr.Kind)
}

func round(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Millisecond).String()
	default:
		return d.String()
	}
}
