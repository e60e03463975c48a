package viewer

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type footerModel struct {
	spinner spinner.Model
	loading bool
	label   string
	width   int
	errMsg  string
}

func newFooter(label string) footerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(red)
	return footerModel{spinner: s, label: label}
}

func (m *footerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *footerModel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return cmd
}

func (m *footerModel) View() string {
	barColor := surface0
	if m.errMsg != "" {
		barColor = pink
	}
	msg := m.label
	if m.errMsg != "" {
		msg = m.errMsg
	}

	left := mainStyle.Copy().Padding(0, 2).Background(lavender).Foreground(base).Bold(true).Render("sshwatch")
	middle := mainStyle.Copy().Background(barColor).Foreground(defaultTextColor)

	fillWidth := m.width - lipgloss.Width(left) - len(msg) - 2 - 10
	if fillWidth < 0 {
		fillWidth = 0
	}

	bar := left
	if m.loading {
		bar += middle.Copy().Width(fillWidth).AlignHorizontal(lipgloss.Right).Render(m.spinner.View())
	} else {
		bar += middle.Copy().Width(fillWidth).Render()
	}
	bar += middle.PaddingLeft(1).Render(msg)
	bar += mainStyle.Copy().Background(overlay2).Padding(0, 2).Render("/ search  q quit")
	return bar
}
