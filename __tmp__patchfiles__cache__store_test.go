package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/model"
	"github.com/sshwatch/sshwatch/util"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *cache.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := cache.Open(path, 800*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(v int64) *int64 { return &v }

// TestS1SSHFailIngestion covers scenario S1.
func TestS1SSHFailIngestion(t *testing.T) {
	s := openTestStore(t)

	subnet, err := util.Subnet("203.0.113.5", 24)
	require.NoError(t, err)

	require.NoError(t, s.UpsertIPEvent("203.0.113.5", 1706530496, "FAIL", "", false, subnet, 24))
	require.NoError(t, s.ForceCommit())
	require.NoError(t, s.RefreshSubnetUniqueCounts())
	require.NoError(t, s.ForceCommit())

	row, ok, err := s.GetIPRow("203.0.113.5")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, row.Fails)
	require.Zero(t, row.OKs)
	require.Zero(t, row.Bans)
	require.Zero(t, row.Unbans)

	sr, ok, err := s.GetSubnetRow("203.0.113.0/24")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, sr.Fails)
	require.EqualValues(t, 1, sr.UniqueIPs)
}

// TestS2JailBanThenUnban covers scenario S2.
func TestS2JailBanThenUnban(t *testing.T) {
	s := openTestStore(t)
	subnet, err := util.Subnet("198.51.100.7", 24)
	require.NoError(t, err)

	require.NoError(t, s.UpsertIPEvent("198.51.100.7", 1706530496, "BAN", "sshd", false, subnet, 24))
	require.NoError(t, s.UpsertIPEvent("198.51.100.7", 1706530800, "UNBAN", "sshd", false, subnet, 24))
	require.NoError(t, s.ForceCommit())

	row, ok, err := s.GetIPRow("198.51.100.7")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, row.Bans)
	require.EqualValues(t, 1, row.Unbans)
	require.Equal(t, "UNBAN", row.LastEvent)
	require.Equal(t, "sshd", row.LastJail)
}

// TestS3ImportIdempotence covers scenario S3 (the cache-level half: merge
// semantics of UpsertImportedBips are idempotent, invariant 5).
func TestS3ImportIdempotence(t *testing.T) {
	s := openTestStore(t)
	subnet, err := util.Subnet("192.0.2.9", 24)
	require.NoError(t, err)

	agg := model.ImportedBan{IP: "192.0.2.9", BanCountTotal: 3, LastBanTS: ptr(1700000000), LastBanJail: "sshd"}

	require.NoError(t, s.UpsertImportedBips(agg, 1700000100, subnet, 24))
	require.NoError(t, s.UpsertImportedBips(agg, 1700000100, subnet, 24))
	require.NoError(t, s.ForceCommit())

	row, ok, err := s.GetIPRow("192.0.2.9")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, row.BanCountTotal)
	require.NotNil(t, row.LastBanTS)
	require.EqualValues(t, 1700000000, *row.LastBanTS)
	require.Equal(t, "sshd", row.LastBanJail)

	// a stale re-import (older last_ban_ts) must not regress the merge
	stale := model.ImportedBan{IP: "192.0.2.9", BanCountTotal: 1, LastBanTS: ptr(1600000000), LastBanJail: "other"}
	require.NoError(t, s.UpsertImportedBips(stale, 1700000200, subnet, 24))
	require.NoError(t, s.ForceCommit())

	row, ok, err = s.GetIPRow("192.0.2.9")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, row.BanCountTotal, "ban_count_total takes max(existing, incoming)")
	require.EqualValues(t, 1700000000, *row.LastBanTS, "last_ban_ts keeps the newer value")
}

// TestS4WHOISEnrichment covers scenario S4.
func TestS4WHOISEnrichment(t *testing.T) {
	s := openTestStore(t)
	subnet, err := util.Subnet("192.0.2.9", 24)
	require.NoError(t, err)
	require.NoError(t, s.UpsertIPEvent("192.0.2.9", 1700000000, "FAIL", "", false, subnet, 24))
	require.NoError(t, s.ForceCommit())

	asked, written, err := s.UpsertASNInfo(map[string]model.ASNInfo{
		"192.0.2.9": {IP: "192.0.2.9", ASN: "64500", CC: "US", AsName: "EXAMPLE", FetchedTS: 1700000500},
	})
	require.NoError(t, err)
	require.Equal(t, 1, asked)
	require.Equal(t, 1, written)
	require.NoError(t, s.ForceCommit())

	row, ok, err := s.GetIPRow("192.0.2.9")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "64500", row.ProviderASN)