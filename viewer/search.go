package viewer

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// searchModel is a plain substring filter box. Unlike the teacher's
// domain-specific operator/column query language (ParseSearchInput), this
// viewer hands the plain typed text to query.Service, whose row methods
// match it as a substring against each projection's own columns.
type searchModel struct {
	TextInput textinput.Model
	width     int
}

func newSearch(width int) searchModel {
	ti := textinput.New()
	ti.Placeholder = "search"
	ti.PromptStyle = ti.PromptStyle.Copy().Foreground(mauve)
	ti.Prompt = "/ "
	ti.Blur()
	return searchModel{TextInput: ti, width: width}
}

func (m *searchModel) Focus() tea.Cmd { return m.TextInput.Focus() }
func (m *searchModel) Blur()          { m.TextInput.Blur() }
func (m *searchModel) Value() string  { return m.TextInput.Value() }

func (m *searchModel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.TextInput, cmd = m.TextInput.Update(msg)
	return cmd
}

func (m *searchModel) View() string {
	style := lipgloss.NewStyle().Width(m.width)
	return style.Render(m.TextInput.View())
}
