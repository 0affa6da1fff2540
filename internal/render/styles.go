package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/iammorganparry/datachat/internal/model"
)

// One Dark Pro color palette
var (
	ColorBgPrimary   = lipgloss.Color("#282C34")
	ColorBgHighlight = lipgloss.Color("#2C313C")

	ColorFgPrimary = lipgloss.Color("#ABB2BF")
	ColorFgMuted   = lipgloss.Color("#636B78")
	ColorFgComment = lipgloss.Color("#5C6370")

	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")
	ColorCyan    = lipgloss.Color("#56B6C2")
	ColorOrange  = lipgloss.Color("#D19A66")

	ColorBorder = lipgloss.Color("#3F4451")
)

// Entry block styles, keyed by role through roleStyles
var (
	UserBlockStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorGreen).
			PaddingLeft(1)

	AgentBlockStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorBlue).
			PaddingLeft(1).
			PaddingRight(1)

	SystemBlockStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ColorMagenta).
				PaddingLeft(1)

	ErrorBlockStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorRed).
			PaddingLeft(1)

	UserLabelStyle   = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	AgentLabelStyle  = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
	SystemLabelStyle = lipgloss.NewStyle().Foreground(ColorMagenta).Bold(true)
	ErrorLabelStyle  = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

	SystemTextStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	ErrorTextStyle  = lipgloss.NewStyle().Foreground(ColorRed)
	TimeStyle       = lipgloss.NewStyle().Foreground(ColorFgComment)

	InsightTitleStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	InsightStyle      = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ColorYellow).
				PaddingLeft(1).
				MarginTop(1)

	NoticeStyle = lipgloss.NewStyle().Foreground(ColorOrange).Italic(true)

	TableBorderStyle = lipgloss.NewStyle().Foreground(ColorBorder)
	TableHeaderStyle = lipgloss.NewStyle().Foreground(ColorMagenta).Bold(true).Padding(0, 1)
	TableCellStyle   = lipgloss.NewStyle().Foreground(ColorFgPrimary).Padding(0, 1)
	TableFooterStyle = lipgloss.NewStyle().Foreground(ColorFgMuted).Italic(true)

	ChartStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	DimStyle   = lipgloss.NewStyle().Foreground(ColorFgComment)
)

type roleStyle struct {
	block lipgloss.Style
	label lipgloss.Style
	text  lipgloss.Style
}

func styleFor(role model.Role) roleStyle {
	switch role {
	case model.RoleUser:
		return roleStyle{block: UserBlockStyle, label: UserLabelStyle, text: lipgloss.NewStyle()}
	case model.RoleSystem:
		return roleStyle{block: SystemBlockStyle, label: SystemLabelStyle, text: SystemTextStyle}
	case model.RoleError:
		return roleStyle{block: ErrorBlockStyle, label: ErrorLabelStyle, text: ErrorTextStyle}
	default:
		return roleStyle{block: AgentBlockStyle, label: AgentLabelStyle, text: lipgloss.NewStyle()}
	}
}
