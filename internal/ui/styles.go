package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	promptPrefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	promptStyle       = lipgloss.NewStyle().Bold(true)
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(termenv.ANSIBrightBlack))

	validStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))

	nameStyle     = lipgloss.NewStyle().Bold(true)
	archivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AD58B4"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(termenv.ANSIBrightBlack))
	sizeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FB458"))
)
