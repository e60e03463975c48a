package viewer_test

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/engine"
	"github.com/sshwatch/sshwatch/query"
	"github.com/sshwatch/sshwatch/viewer"
	"github.com/sshwatch/sshwatch/whois"
)

func newTestSvc(t *testing.T) (*query.Service, *engine.Engine) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 800*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bulk := &whois.BulkClient{Dial: func(string, string, time.Duration) (net.Conn, error) { return nil, nil }}
	eng := engine.New(cfg, store, zerolog.Nop(), nil, nil, nil, bulk)
	return query.New(store, eng, cfg, nil), eng
}

func TestModelInitLoadsActiveTab(t *testing.T) {
	svc, eng := newTestSvc(t)
	eng.ObserveEvent("auth", "FAIL", "203.0.113.5", "")

	m := viewer.NewModel(svc)
	cmd := m.Init()
	require.NotNil(t, cmd)

	sized, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	out := sized.View()
	require.Contains(t, out, "Realtime")
}

func TestModelTabSwitchChangesView(t *testing.T) {
	svc, _ := newTestSvc(t)
	m := viewer.NewModel(svc)
	m.Init()

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	out := next.View()
	require.Contains(t, out, "IP Cache")
}
