package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/quarry/internal/render"
)

// TreeFormatter returns a render.Formatter that colors questions, answers,
// and metadata lines of the diagnostic tree.
func TreeFormatter() render.Formatter {
	question := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	answer := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return render.Formatter{
		Question: func(s string) string { return question.Render(s) },
		Answer:   func(s string) string { return answer.Render(s) },
		Meta:     func(s string) string { return meta.Render(s) },
	}
}
