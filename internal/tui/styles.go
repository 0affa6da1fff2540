package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/iammorganparry/datachat/internal/render"
)

// Screen chrome. Entry styles live in render.
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(render.ColorRed).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(render.ColorFgMuted)

	DatasetStyle = lipgloss.NewStyle().
			Foreground(render.ColorCyan)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(render.ColorBorder).
			Padding(0, 1)

	InputFocusedStyle = InputStyle.
				BorderForeground(render.ColorGreen)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(render.ColorGreen)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(render.ColorFgMuted).
			PaddingLeft(1).
			PaddingRight(1)

	StatusBusyStyle = lipgloss.NewStyle().
			Foreground(render.ColorYellow)

	StatusReadyStyle = lipgloss.NewStyle().
				Foreground(render.ColorGreen).
				Bold(true)

	StatusIdleStyle = lipgloss.NewStyle().
			Foreground(render.ColorFgMuted)

	HintStyle = lipgloss.NewStyle().
			Foreground(render.ColorOrange)

	PlaceholderStyle = lipgloss.NewStyle().
				Foreground(render.ColorFgMuted).
				PaddingLeft(2)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(render.ColorBorder).
			Padding(1, 2)

	HelpTitleStyle = lipgloss.NewStyle().
			Foreground(render.ColorBlue).
			Bold(true)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(render.ColorYellow)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(render.ColorFgPrimary)
)
