package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-flowgraph/pkg/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Width(22)

	summaryBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1)

	failedBoxStyle = summaryBoxStyle.
			BorderForeground(lipgloss.Color("#FF0000"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// renderSummary formats a finished run for the terminal.
func renderSummary(report *pipeline.Report, runErr error) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("flowgraph %s", report.Command)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("run %s  %s", report.RunID, report.Duration.Round(time.Millisecond))))
	b.WriteString("\n\n")

	for _, s := range report.Stats {
		b.WriteString(labelStyle.Render(s.Name))
		b.WriteString(s.Value)
		b.WriteString("\n")
	}

	if len(report.Files) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("files"))
		b.WriteString(strings.Join(report.Files, "\n"+strings.Repeat(" ", 22)))
		b.WriteString("\n")
	}
	if len(report.Uploaded) > 0 {
		b.WriteString(labelStyle.Render("uploaded"))
		b.WriteString(strings.Join(report.Uploaded, "\n"+strings.Repeat(" ", 22)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	box := summaryBoxStyle
	if runErr != nil {
		b.WriteString(errorStyle.Render("❌ " + runErr.Error()))
		box = failedBoxStyle
	} else {
		b.WriteString(successStyle.Render("✅ done"))
	}

	return box.Render(b.String())
}
