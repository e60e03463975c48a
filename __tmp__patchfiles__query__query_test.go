package query_test

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/engine"
	"github.com/sshwatch/sshwatch/query"
	"github.com/sshwatch/sshwatch/util"
	"github.com/sshwatch/sshwatch/whois"
)

func newTestService(t *testing.T) (*query.Service, *cache.Store, *engine.Engine, config.Config) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.SubnetPrefix = 24
	cfg.TopSubnets = 10

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 800*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bulk := &whois.BulkClient{Dial: func(string, string, time.Duration) (net.Conn, error) { return nil, nil }}
	eng := engine.New(cfg, store, zerolog.Nop(), nil, nil, nil, bulk)

	return query.New(store, eng, cfg, nil), store, eng, cfg
}

func TestRealtimeRowsFiltersAndHidesZero(t *testing.T) {
	q, _, eng, _ := newTestService(t)

	eng.ObserveEvent("auth", "FAIL", "203.0.113.5", "")
	eng.ObserveEvent("auth", "FAIL", "198.51.100.7", "")

	rows := q.RealtimeRows("")
	require.Len(t, rows, 2)

	filtered := q.RealtimeRows("203.0")
	require.Len(t, filtered, 1)
	require.Equal(t, "203.0.113.5", filtered[0].IP)
}

func TestGetIPDetailsTopSubnetRank(t *testing.T) {
	q, store, eng, cfg := newTestService(t)

	subnet, err := util.Subnet("203.0.113.5", cfg.SubnetPrefix)
	require.NoError(t, err)
	require.NoError(t, store.UpsertIPEvent("203.0.113.5", 1700000000, "FAIL", "", false, subnet, cfg.SubnetPrefix))
	require.NoError(t, store.ForceCommit())
	require.NoError(t, store.RefreshSubnetUniqueCounts())
	require.NoError(t, store.ForceCommit())

	eng.ObserveEvent("auth", "FAIL", "203.0.113.5", "")

	details, err := q.GetIPDetails("203.0.113.5")
	require.NoError(t, err)
	require.True(t, details.HasRow)
	require.NotNil(t, details.TopSubnetRank)
	require.Equal(t, 1, *details.TopSubnetRank)
	require.NotNil(t, details.Realtime)
	require.EqualValues(t, 1, details.Realtime["FAIL"])

	lines := query.FormatIPDetails(details)
	require.Contains(t, lines, "IP: 203.0.113.5")
}

func TestGetIPDetailsUnknownIPHasNoRow(t *testing.T) {
	q, _, _, _ := newTestService(t)
	details, err := q.GetIPDetails("192.0.2.1")
	require.NoError(t, err)
	require.False(t, details.HasRow)
	require.Nil(t, details.TopSubnetRank)

	lines := query.FormatIPDetails(details)
	require.Contains(t, lines, "Cache ip_cache: (no row)")
}

func TestEventsLinesIncludesObservedEvent(t *testing.T) {
	q, _, eng, _ := newTestService(t)
	eng.ObserveEvent("auth", "FAIL", "203.0.113.5", "")

	lines := q.EventsLines(10)
	require.NotEmpty(t, lines)
}


