package log

import "github.com/charmbracelet/lipgloss"

// width of the level column
const levelWidth = 5

var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")) // Gray
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0000FF")) // Blue
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")) // Yellow
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")) // Red

	fatalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Background(lipgloss.Color("#000000")).
			Bold(true)

	levelStyles = []struct {
		level Level
		style lipgloss.Style
	}{
		{level: DebugLevel, style: debugStyle},
		{level: InfoLevel, style: infoStyle},
		{level: WarnLevel, style: warnStyle},
		{level: ErrorLevel, style: errorStyle},
		{level: FatalLevel, style: fatalStyle},
	}
)
