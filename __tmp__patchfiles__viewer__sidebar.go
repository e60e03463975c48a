package viewer

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var sideBarStyle = lipgloss.NewStyle()

// sidebarModel renders the detail pane for whatever row is selected in the
// list, as lines handed to it by the query layer's Format*Details helpers.
type sidebarModel struct {
	Viewport      viewport.Model
	lines         []string
	ScrollEnabled bool
}

func newSidebar() sidebarModel {
	return sidebarModel{}
}

func (m *sidebarModel) setLines(lines []string) {
	m.lines = lines
	m.Viewport.SetContent(strings.Join(lines, "\n"))
}

func (m *sidebarModel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if _, ok := msg.(tea.WindowSizeMsg); ok {
		cmd = viewport.Sync(m.Viewport)
	}
	// Key presses scroll the detail pane only while scrolling is toggled on.
	if _, isKey := msg.(tea.KeyMsg); isKey && !m.ScrollEnabled {
		return cmd
	}
	var vpCmd tea.Cmd
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	return tea.Batch(cmd, vpCmd)
}

func (m *sidebarModel) View() string {
	borderColor := mauve
	if m.ScrollEnabled {
		borderColor = green
	}
	style := sideBarStyle.Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(borderColor)
	return style.Render(m.Viewport.View())
}


