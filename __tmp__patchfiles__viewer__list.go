package viewer

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

const ellipsis = "…"

// column describes one fixed-width column of the row list.
type column struct {
	name  string
	width int
}

// rowItem is one row of whichever tab is currently displayed; key is what
// gets passed back to the query layer when the row is opened (an IP,
// subnet, or ASN string).
type rowItem struct {
	key   string
	cells []string
}

func (r rowItem) FilterValue() string { return r.key }

type listModel struct {
	Rows        list.Model
	width       int
	totalHeight int
	columns     []column
}

func newList(items []list.Item, columns []column, width, height int) listModel {
	d := rowDelegate{columns: columns}
	l := list.New(items, d, width, height)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return listModel{Rows: l, columns: columns, width: width}
}

func (m *listModel) setItems(items []list.Item) {
	m.Rows.SetItems(items)
}

func (m *listModel) selected() (rowItem, bool) {
	it, ok := m.Rows.SelectedItem().(rowItem)
	return it, ok
}

func (m *listModel) Update(msg tea.Msg) (tea.Cmd, error) {
	var cmd tea.Cmd
	m.Rows, cmd = m.Rows.Update(msg)
	return cmd, nil
}

func (m *listModel) SetSize(width, height int) {
	m.width = width
	_, v := listStyle.GetFrameSize()
	header := lipgloss.Height(renderColumnHeader(m.columns, width))
	h := height - header - v
	m.totalHeight = header + v + h
	m.Rows.SetSize(width, h)
}

func (m *listModel) View() string {
	header := renderColumnHeader(m.columns, m.width)
	return listStyle.
		Border(lipgloss.RoundedBorder(), true, false, true, true).
		BorderForeground(lavender).
		Render(lipgloss.JoinVertical(lipgloss.Top, header, m.Rows.View()))
}

type rowDelegate struct {
	columns []column
}

func (d rowDelegate) Height() int                             { return 1 }
func (d rowDelegate) Spacing() int                             { return 0 }
func (d rowDelegate) Update(tea.Msg, *list.Model) tea.Cmd      { return nil }
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	r, ok := listItem.(rowItem)
	if !ok || m.Width() <= 0 {
		return
	}

	style := lipgloss.NewStyle().PaddingRight(2)
	if index == m.Index() {
		style = style.Background(surface0).Bold(true)
	}

	var rendered string
	for i, cell := range r.cells {
		width := d.columns[i].width
		cellStyle := style.Foreground(defaultTextColor).Width(width)
		rendered += cellStyle.Render(truncateCell(cell, width-2))
	}
	fmt.Fprint(w, rendered)
}

func truncateCell(s string, width int) string {
	if width <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(width), ellipsis)
}

func renderColumnHeader(columns []column, headerWidth int) string {
	var header string
	style := lipgloss.NewStyle().Foreground(defaultTextColor)
	for i, c := range columns {
		width := c.width - 2
		header += style.Width(width).Render(c.name)
		if i < len(columns)-1 {
			header += style.Foreground(surface0).Render(" | ")
		}
	}
	return listHeaderStyle.Width(headerWidth).Render(header)
}

func columnsWidth(columns []column) int {
	w := 0
	for _, c := range columns {
		w += c.width
	}
	return w
}


