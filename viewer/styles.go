package viewer

import "github.com/charmbracelet/lipgloss"

// colors, catppuccin-derived, matching the palette used throughout the
// rest of the ambient terminal tooling this viewer is grounded on.
var (
	defaultTextColor = lipgloss.AdaptiveColor{Light: "#2c2b2f", Dark: "#d3cdd4"}
	subduedTextColor = lipgloss.AdaptiveColor{Light: "#454545", Dark: "#A49FA5"}

	red      = lipgloss.AdaptiveColor{Light: "#D2042D", Dark: "#f38ba8"}
	peach    = lipgloss.AdaptiveColor{Light: "#fe640b", Dark: "#fab387"}
	yellow   = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	lavender = lipgloss.AdaptiveColor{Light: "#7287fd", Dark: "#b4befe"}
	mauve    = lipgloss.AdaptiveColor{Light: "#8839ef", Dark: "#cba6f7"}
	green    = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	pink     = lipgloss.AdaptiveColor{Light: "#ea76cb", Dark: "#f5c2e7"}

	overlay0 = lipgloss.AdaptiveColor{Light: "#9ca0b0", Dark: "#6c7086"}
	overlay2 = lipgloss.AdaptiveColor{Light: "#7c7f93", Dark: "#9399b2"}
	surface0 = lipgloss.AdaptiveColor{Light: "#ccd0da", Dark: "#313244"}
	base     = lipgloss.AdaptiveColor{Light: "#eff1f5", Dark: "#1e1e2e"}
)

var (
	mainStyle       = lipgloss.NewStyle().Margin(0, 0)
	listStyle       = lipgloss.NewStyle().Margin(0, 0)
	listHeaderStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lavender).Foreground(subduedTextColor).MarginBottom(1)
	tabActiveStyle  = lipgloss.NewStyle().Padding(0, 2).Background(lavender).Foreground(base).Bold(true)
	tabIdleStyle    = lipgloss.NewStyle().Padding(0, 2).Foreground(subduedTextColor)
)
