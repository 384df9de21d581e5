package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dsisson/welkin/internal/branding"
)

// Summary styles.
var (
	// panelStyle frames one application's report.
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(branding.ColorBorder)).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(branding.ColorWhite)).
			Background(lipgloss.Color(branding.ColorAccent)).
			Padding(0, 1)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(branding.ColorPass)).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(branding.ColorFail)).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(branding.ColorLabel))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(branding.ColorLabel)).
			Width(28)
)

// RenderReport formats one report as a bordered panel listing its steps.
func RenderReport(r *Report) string {
	var b strings.Builder

	status := passStyle.Render("PASS")
	if !r.Passed {
		status = failStyle.Render("FAIL")
	}
	b.WriteString(fmt.Sprintf("%s %s %s\n", titleStyle.Render(r.App), r.Scenario, status))

	for _, s := range r.Steps {
		from := s.From
		if from == "" {
			from = "-"
		}
		line := fmt.Sprintf("%s %s -> %s %s",
			labelStyle.Render(from),
			s.Via,
			s.To,
			dimStyle.Render(s.Duration.Round(time.Millisecond).String()))
		if s.Failed() {
			line = failStyle.Render("x ") + line + "\n    " + failStyle.Render(s.Error)
		} else {
			line = passStyle.Render("✓ ") + line
		}
		b.WriteString(line + "\n")
	}
	if r.Error != "" && len(r.Failures()) == 0 {
		b.WriteString(failStyle.Render(r.Error) + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderSummary formats every report followed by a pass/fail total.
func RenderSummary(reports []*Report) string {
	var b strings.Builder
	passed := 0
	for _, r := range reports {
		b.WriteString(RenderReport(r))
		b.WriteString("\n")
		if r.Passed {
			passed++
		}
	}

	total := fmt.Sprintf("%d/%d scenarios passed", passed, len(reports))
	if passed == len(reports) {
		b.WriteString(passStyle.Render(total))
	} else {
		b.WriteString(failStyle.Render(total))
	}
	return b.String()
}
