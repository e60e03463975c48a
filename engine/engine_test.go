package engine

import (
	"bufio"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/constants"
	"github.com/sshwatch/sshwatch/util"
	"github.com/sshwatch/sshwatch/whois"
)

// startFakeCymru runs a persistent fake bulk-whois server that echoes a
// verbose-format AS record for each queried IP, for tests that need actual
// asn_cache writes rather than a simulated lookup failure.
func startFakeCymru(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var ips []string
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "end" {
						break
					}
					if line == "begin" || line == "verbose" {
						continue
					}
					ips = append(ips, line)
				}
				for _, ip := range ips {
					conn.Write([]byte("64500   | " + ip + "        | 192.0.2.0/24        | US | arin     | 2010-01-01 | EXAMPLE-AS, US\n"))
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func newTestEngine(t *testing.T, cfg config.Config, dialErr bool) (*Engine, *cache.Store) {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 800*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var bulk *whois.BulkClient
	if dialErr {
		bulk = &whois.BulkClient{Dial: func(string, string, time.Duration) (net.Conn, error) {
			return nil, errors.New("no network in tests")
		}}
	} else {
		addr := startFakeCymru(t)
		bulk = &whois.BulkClient{Dial: func(network, _ string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout(network, addr, timeout)
		}}
	}
	e := New(cfg, store, zerolog.Nop(), nil, nil, nil, bulk)
	return e, store
}

func baseConfig() config.Config {
	cfg := config.GetDefaultConfig()
	cfg.ASNRefreshInterval = 0 // rate.Every(0) is an unlimited limiter, avoiding test flakiness
	cfg.ASNBatch = 2
	cfg.ASNCacheTTL = 1
	return cfg
}

// TestS5RefreshWraparound covers scenario S5: three expired IPs A<B<C,
// batch=2. First call returns [A,B], second returns [C], third finds
// nothing (A and B were just refreshed and are no longer expired).
func TestS5RefreshWraparound(t *testing.T) {
	cfg := baseConfig()
	e, store := newTestEngine(t, cfg, false)

	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		subnet, err := util.Subnet(ip, cfg.SubnetPrefix)
		require.NoError(t, err)
		require.NoError(t, store.UpsertIPEvent(ip, int64(1700000000+i), "FAIL", "", false, subnet, cfg.SubnetPrefix))
	}
	require.NoError(t, store.ForceCommit())

	// the fake whois server resolves every queried IP, so the first two
	// calls write asn_cache rows for A and B, making them no longer
	// "needing refresh" by the time the cursor wraps around.
	asked1, written1 := e.RefreshASN()
	require.Equal(t, 2, asked1, "first call returns batch-sized [A,B]")
	require.Equal(t, 2, written1)

	asked2, written2 := e.RefreshASN()
	require.Equal(t, 1, asked2, "second call returns the remainder [C]")
	require.Equal(t, 1, written2)

	asked3, _ := e.RefreshASN()
	require.Equal(t, 0, asked3, "third call wraps around but finds nothing newly expired")
}

func TestHandleEventBumpsRealtimeCounters(t *testing.T) {
	e, _ := newTestEngine(t, baseConfig(), true)

	for i := 0; i < 3; i++ {
		e.handleEvent(constants.SrcAuth, constants.KindFail, "203.0.113.5", "")
	}
	rows := e.RealtimeSnapshot()
	require.Len(t, rows, 1)
	require.Equal(t, "203.0.113.5", rows[0].IP)
	require.EqualValues(t, 3, rows[0].Counters[constants.KindFail])
}

func TestEventRingCapsEnforced(t *testing.T) {
	e, _ := newTestEngine(t, baseConfig(), true)

	for i := 0; i < constants.GlobalEventRingCap+10; i++ {
		e.handleEvent(constants.SrcAuth, constants.KindFail, "203.0.113.5", "")
	}
	require.Len(t, e.GlobalEvents(), constants.GlobalEventRingCap)
	require.LessOrEqual(t, len(e.IPEvents("203.0.113.5")), constants.PerIPEventRingCap)
}
