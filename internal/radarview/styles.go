package radarview

import "github.com/charmbracelet/lipgloss"

// Matrix color palette
var (
	colorBright  = lipgloss.Color("#00FF41")
	colorGreen   = lipgloss.Color("#00CC33")
	colorMid     = lipgloss.Color("#008F11")
	colorDim     = lipgloss.Color("#004A0A")
	colorUser    = lipgloss.Color("#00FFAA")
	colorOverlap = lipgloss.Color("#FFCC00")
	colorError   = lipgloss.Color("#FF3300")

	styleCenter  = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleRing    = lipgloss.NewStyle().Foreground(colorMid)
	styleDot     = lipgloss.NewStyle().Foreground(colorDim)
	styleUser    = lipgloss.NewStyle().Foreground(colorUser).Bold(true)
	styleOverlap = lipgloss.NewStyle().Foreground(colorOverlap).Bold(true)
	styleLabel   = lipgloss.NewStyle().Foreground(colorGreen)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(colorGreen).
			Padding(0, 1)
)
