package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AF87")) // muted sage
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AF5F5F")) // muted terracotta
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AF5F5F"))
	skipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func styled(outcome Outcome) string {
	switch outcome {
	case OutcomePass:
		return passStyle.Render("PASS")
	case OutcomeFail:
		return failStyle.Render("FAIL")
	case OutcomeError:
		return errorStyle.Render("ERROR")
	case OutcomeSkipped:
		return skipStyle.Render("SKIP")
	default:
		return string(outcome)
	}
}

// Summary prints one line per notebook plus the aggregate counts. Full
// failure detail lives in report.json and the saved notebooks; the
// console stays scannable.
func Summary(w io.Writer, r *Report) {
	fmt.Fprintln(w)
	for _, res := range r.Results {
		line := fmt.Sprintf("%-5s %s", styled(res.Outcome), res.Notebook)
		if res.Outcome == OutcomeFail || res.Outcome == OutcomeError {
			line += fmt.Sprintf("  (%s)", res.Detail)
		}
		if res.Outcome != OutcomeSkipped {
			line += fmt.Sprintf("  [%s]", formatDuration(time.Duration(res.ElapsedMS)*time.Millisecond))
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%d passed, %d failed, %d errored, %d skipped (%s)\n",
		r.Counts.Pass, r.Counts.Fail, r.Counts.Error, r.Counts.Skipped,
		formatDuration(r.FinishedAt.Sub(r.StartedAt)))
}

// formatDuration formats a duration as HH:MM:SS or MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
