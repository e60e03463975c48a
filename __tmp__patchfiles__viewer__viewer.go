// Package viewer implements the interactive terminal UI (bubbletea) that
// lets an operator browse realtime counters, cached IPs, subnets, and ASNs
// while sshwatch runs. It is a thin consumer of the query package only —
// it never touches *sql.DB or engine internals directly.
package viewer

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sshwatch/sshwatch/query"
)

const refreshInterval = 1 * time.Second

type tab int

const (
	tabRealtime tab = iota
	tabIP
	tabSubnets
	tabASN
	numTabs
)

func (t tab) label() string {
	switch t {
	case tabRealtime:
		return "Realtime"
	case tabIP:
		return "IP Cache"
	case tabSubnets:
		return "Subnets"
	case tabASN:
		return "ASN"
	default:
		return ""
	}
}

func (t tab) columns() []column {
	switch t {
	case tabRealtime:
		return []column{{"IP", 18}, {"FAIL", 8}, {"OK", 8}, {"BAN", 8}, {"UNBAN", 8}}
	case tabIP:
		return []column{{"IP", 18}, {"Fails", 8}, {"Bans", 8}, {"Ban Total", 10}, {"ASN", 10}, {"Last Event", 12}}
	case tabSubnets:
		return []column{{"Subnet", 20}, {"Fails", 8}, {"Bans", 8}, {"Unique IPs", 11}, {"Last IP", 16}}
	case tabASN:
		return []column{{"ASN", 10}, {"Name", 22}, {"IP Count", 9}, {"Bans Sum", 9}, {"Fails Sum", 10}}
	default:
		return nil
	}
}

type keyMap struct {
	nextTab key.Binding
	prevTab key.Binding
	filter  key.Binding
	unfocus key.Binding
	scroll  key.Binding
	quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		nextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		prevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		unfocus: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel search")),
		scroll:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle detail scroll")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q | ctrl+c", "quit")),
	}
}

// Model is the root bubbletea model for the viewer.
type Model struct {
	svc *query.Service

	active tab
	lists  [numTabs]listModel
	search searchModel
	side   sidebarModel
	footer footerModel
	keys   keyMap
	width  int
	height int
}

// refreshMsg triggers a re-pull of the active tab's rows from the query
// service; emitted on a steady tick so the view tracks the live engine.
type refreshMsg struct{}

func tickRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// NewModel constructs the viewer's root model over svc.
func NewModel(svc *query.Service) *Model {
	m := &Model{svc: svc, keys: defaultKeys()}
	for t := tab(0); t < numTabs; t++ {
		m.lists[t] = newList(nil, t.columns(), columnsWidth(t.columns()), 20)
	}
	m.search = newSearch(40)
	m.side = newSidebar()
	m.footer = newFooter("sshwatch")
	return m
}

// CreateUI runs the interactive program until the user quits.
func CreateUI(svc *query.Service) error {
	m := NewModel(svc)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running viewer: %w", err)
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	m.reloadActive()
	return tea.Batch(m.footer.Init(), tickRefresh())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case refreshMsg:
		m.reloadActive()
		cmds = append(cmds, tickRefresh())

	case tea.KeyMsg:
		switch {
		case m.search.TextInput.Focused():
			switch {
			case key.Matches(msg, m.keys.unfocus):
				m.search.Blur()
				m.reloadActive()
			case msg.String() == "enter":
				m.search.Blur()
				m.reloadActive()
			default:
				cmds = append(cmds, m.search.Update(msg))
				m.reloadActive()
			}
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.filter):
			cmds = append(cmds, m.search.Focus())
		case key.Matches(msg, m.keys.nextTab):
			m.active = (m.active + 1) % numTabs
			m.reloadActive()
		case key.Matches(msg, m.keys.prevTab):
			m.active = (m.active - 1 + numTabs) % numTabs
			m.reloadActive()
		case key.Matches(msg, m.keys.scroll):
			m.side.ScrollEnabled = !m.side.ScrollEnabled
		default:
			cmd, _ := m.lists[m.active].Update(msg)
			cmds = append(cmds, cmd)
			m.updateSidebar()
		}

	default:
		cmd, _ := m.lists[m.active].Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.footer.Update(msg), m.side.Update(msg))
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	var tabsLine string
	for t := tab(0); t < numTabs; t++ {
		style := tabIdleStyle
		if t == m.active {
			style = tabActiveStyle
		}
		tabsLine += style.Render(t.label())
	}

	main := lipgloss.JoinHorizontal(lipgloss.Left,
		mainStyle.Render(m.lists[m.active].View()),
		mainStyle.Render(m.side.View()),
	)

	return lipgloss.JoinVertical(lipgloss.Top,
		lipgloss.JoinHorizontal(lipgloss.Left, tabsLine, "  ", m.search.View()),
		main,
		m.footer.View(),
	)
}

func (m *Model) resize() {
	m.footer.width = m.width
	listHeight := m.height - 5
	for t := tab(0); t < numTabs; t++ {
		m.lists[t].SetSize(columnsWidth(t.columns()), listHeight)
	}
	m.side.Viewport.Height = m.lists[m.active].totalHeight
	m.side.Viewport.Width = m.width - columnsWidth(m.active.columns()) - 6
	m.search.width = 40
}

// reloadActive re-pulls the active tab's rows from the query service and
// refreshes the detail pane for whatever is now selected.
func (m *Model) reloadActive() {
	search := m.search.Value()
	var items []list.Item

	switch m.active {
	case tabRealtime:
		for _, r := range m.svc.RealtimeRows(search) {
			items = append(items, rowItem{key: r.IP, cells: []string{
				r.IP,
				fmt.Sprintf("%d", r.Counters["FAIL"]),
				fmt.Sprintf("%d", r.Counters["OK"]),
				fmt.Sprintf("%d", r.Counters["BAN"]),
				fmt.Sprintf("%d", r.Counters["UNBAN"]),
			}})
		}
	case tabIP:
		rows, err := m.svc.IPCacheRows(search, 200)
		if err == nil {
			for _, r := range rows {
				items = append(items, rowItem{key: r.IP, cells: []string{
					r.IP,
					fmt.Sprintf("%d", r.Fails),
					fmt.Sprintf("%d", r.Bans),
					fmt.Sprintf("%d", r.BanCountTotal),
					r.ProviderASN,
					r.LastEvent,
				}})
			}
		}
	case tabSubnets:
		rows, err := m.svc.SubnetRows(search)
		if err == nil {
			for _, r := range rows {
				items = append(items, rowItem{key: r.Subnet, cells: []string{
					r.Subnet,
					fmt.Sprintf("%d", r.Fails),
					fmt.Sprintf("%d", r.Bans),
					fmt.Sprintf("%d", r.UniqueIPs),
					r.LastIP,
				}})
			}
		}
	case tabASN:
		rows, err := m.svc.ASNRows(search)
		if err == nil {
			for _, r := range rows {
				items = append(items, rowItem{key: r.ASN, cells: []string{
					r.ASN,
					r.AsName,
					fmt.Sprintf("%d", r.IPCount),
					fmt.Sprintf("%d", r.BansSum),
					fmt.Sprintf("%d", r.FailsSum),
				}})
			}
		}
	}

	m.lists[m.active].setItems(items)
	m.updateSidebar()
}

// updateSidebar fetches and formats the detail view for whatever row is
// currently selected in the active tab's list.
func (m *Model) updateSidebar() {
	sel, ok := m.lists[m.active].selected()
	if !ok {
		m.side.setLines([]string{"No row selected."})
		return
	}

	var lines []string
	switch m.active {
	case tabRealtime, tabIP:
		d, err := m.svc.GetIPDetails(sel.key)
		if err != nil {
			lines = []string{"error: " + err.Error()}
		} else {
			lines = query.FormatIPDetails(d)
		}
	case tabSubnets:
		d, err := m.svc.GetSubnetDetails(sel.key)
		if err != nil {
			lines = []string{"error: " + err.Error()}
		} else {
			lines = query.FormatSubnetDetails(d)
		}
	case tabASN:
		d, err := m.svc.GetASNDetails(sel.key)
		if err != nil {
			lines = []string{"error: " + err.Error()}
		} else {
			lines = query.FormatASNDetails(d)
		}
	}
	m.side.setLines(lines)
}


