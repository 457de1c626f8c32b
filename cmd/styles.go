package cmd

import "github.com/charmbracelet/lipgloss"

// Styling
var (
	headerColor   = lipgloss.Color("#F780FF") // Bright pink
	playerColor   = lipgloss.Color("#8BE9FD") // Cyan
	narratorColor = lipgloss.Color("#E9E9F4") // Light purple/white
	systemColor   = lipgloss.Color("#6272A4") // Muted purple
	warningColor  = lipgloss.Color("#F1FA8C") // Yellow
	errorColor    = lipgloss.Color("#FF5555") // Red
	successColor  = lipgloss.Color("#50FA7B") // Green

	headerStyle = lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true)

	playerStyle = lipgloss.NewStyle().
		Foreground(playerColor).
		Italic(true)

	narratorStyle = lipgloss.NewStyle().
		Foreground(narratorColor)

	systemStyle = lipgloss.NewStyle().
		Foreground(systemColor).
		Italic(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(warningColor)

	errorStyle = lipgloss.NewStyle().
		Foreground(errorColor).
		Bold(true)

	successStyle = lipgloss.NewStyle().
		Foreground(successColor)
)
