package report

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions.
var (
	// TitleStyle for section headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))

	// MutedStyle for secondary text.
	MutedStyle = lipgloss.NewStyle().Faint(true)

	// ProfitStyle for positive P/L.
	ProfitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// LossStyle for negative P/L.
	LossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// ErrorStyle for the error of a partial run.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// FormatPnL formats a profit or loss with a sign and colour.
func FormatPnL(value float64) string {
	text := fmt.Sprintf("%+.2f", value)

	switch {
	case value > 0:
		return ProfitStyle.Render(text)
	case value < 0:
		return LossStyle.Render(text)
	default:
		return text
	}
}

// FormatPct formats a percentage already expressed in percent.
func FormatPct(value float64) string {
	text := fmt.Sprintf("%+.2f%%", value)

	switch {
	case value > 0:
		return ProfitStyle.Render(text)
	case value < 0:
		return LossStyle.Render(text)
	default:
		return text
	}
}
