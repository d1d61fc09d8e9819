package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Each color has a light and a dark terminal variant.
var (
	AccentColor  = lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#58A6FF"} // headers, dividers
	SuccessColor = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"} // running tests, prompts
	MutedColor   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
)

// Layout bounds for rendered boxes.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	IdleMarker    = "·"
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	HeaderTitleStyle      = fg(TextColor).Bold(true).PaddingLeft(2)
	HeaderCommandStyle    = fg(AccentColor).PaddingLeft(2)
	HeaderParamKeyStyle   = fg(MutedColor).PaddingLeft(2)
	HeaderParamValueStyle = fg(TextColor)

	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	WarningTitleStyle = fg(WarningColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)

	// ResultKeyStyle pads detail keys into a column.
	ResultKeyStyle   = fg(MutedColor).Width(18)
	ResultValueStyle = fg(TextColor)

	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)

	// Watch view
	EventStyle     = fg(TextColor).PaddingLeft(2)
	EventTimeStyle = fg(MutedColor)
	HelpStyle      = fg(MutedColor).Italic(true).PaddingLeft(2)
)

// GetTerminalWidth returns the stdout width clamped to the layout bounds,
// or MinTerminalWidth when stdout is not a terminal.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clampWidth(width)
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clampWidth(width int) int {
	return max(MinTerminalWidth, min(width, MaxContentWidth))
}

// HeaderBorderStyle returns the rounded box around command headers.
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor).
		Width(width - 2)
}

// resultBoxStyle returns the double border box for results in color c.
func resultBoxStyle(width int, c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(c).
		Width(width-2).
		Padding(0, 2)
}

// TroubleshootingBoxStyle returns the box for tips, indented inside a
// result box.
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, true).
		BorderForeground(MutedColor).
		Width(width-12).
		PaddingLeft(1).
		MarginLeft(3)
}

// RenderHorizontalDivider draws a line of char in the accent color.
func RenderHorizontalDivider(width int, char string) string {
	return fg(AccentColor).Render(strings.Repeat(char, width))
}
