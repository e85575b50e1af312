package health

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/thesyncim/nixbrowser/pkg/theme"
)

// Styles are the terminal styles used by Render.
type Styles struct {
	Title      lipgloss.Style
	Green      lipgloss.Style
	Red        lipgloss.Style
	Info       lipgloss.Style
	Suggestion lipgloss.Style
}

// NewStyles derives terminal styles from the dashboard palette so that CLI
// and web output agree.
func NewStyles(t *theme.Theme) Styles {
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Hex("primary", 500))),
		Green:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Scales["green"][500])),
		Red:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Hex("error", 500))),
		Info:       lipgloss.NewStyle().Foreground(lipgloss.Color(t.Hex("base", 500))),
		Suggestion: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(t.Hex("secondary", 600))),
	}
}

// Render formats h for a terminal, one block per check.
func Render(h *Health, s Styles) string {
	var b strings.Builder
	for _, c := range h.Checks {
		if c.Report.Green {
			b.WriteString(s.Green.Render("✓"))
		} else {
			b.WriteString(s.Red.Render("✗"))
		}
		b.WriteString(" ")
		b.WriteString(s.Title.Render(c.Name))
		b.WriteString("\n  ")
		b.WriteString(s.Info.Render(c.Info))
		b.WriteString("\n")
		if !c.Report.Green {
			b.WriteString("  ")
			b.WriteString(s.Red.Render(c.Report.Msg))
			b.WriteString("\n  ")
			b.WriteString(s.Suggestion.Render("Suggestion: " + c.Report.Suggestion))
			b.WriteString("\n")
		}
	}
	if h.Healthy {
		b.WriteString(s.Green.Render("All checks passed"))
	} else {
		b.WriteString(s.Red.Render("Some checks failed"))
	}
	b.WriteString("\n")
	return b.String()
}
