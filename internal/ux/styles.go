package ux

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Terminal styles shared by command summaries.
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	FailureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))
)

// Field renders a "label: value" line with an aligned label.
func Field(label string, value any) string {
	return fmt.Sprintf("%s %v", LabelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// Count renders n green when good, red when bad and plain when zero.
func Count(n int, good bool) string {
	s := fmt.Sprintf("%d", n)
	switch {
	case n == 0:
		return s
	case good:
		return SuccessStyle.Render(s)
	default:
		return FailureStyle.Render(s)
	}
}
