package notice

import "github.com/charmbracelet/lipgloss"

var (
	colorError = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorText  = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F3F4F6"}
	colorPath  = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"}

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)

	detailStyle = lipgloss.NewStyle().
			Foreground(colorText)

	pathStyle = lipgloss.NewStyle().
			Foreground(colorPath).
			Underline(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)
