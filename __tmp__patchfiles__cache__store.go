// Package cache implements the persistent relational cache store (spec.md
// §3, §4.5): ip_cache, subnet_cache, subnet_ip, asn_cache, and import_state,
// backed by SQLite via modernc.org/sqlite. Schema and query semantics are
// ported directly from original_source/cache_db.py; batching is adapted
// from activecm-rita's database/writer.go rate-limited commit pattern.
package cache

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"golang.org/x/time/rate"

	"github.com/sshwatch/sshwatch/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ip_cache (
	ip TEXT PRIMARY KEY,
	first_seen_ts INTEGER NOT NULL,
	last_seen_ts INTEGER NOT NULL,
	fails INTEGER NOT NULL DEFAULT 0,
	oks INTEGER NOT NULL DEFAULT 0,
	bans INTEGER NOT NULL DEFAULT 0,
	unbans INTEGER NOT NULL DEFAULT 0,
	last_event TEXT NOT NULL DEFAULT '',
	last_jail TEXT NOT NULL DEFAULT '',
	last_ban_ts INTEGER,
	last_ban_jail TEXT NOT NULL DEFAULT '',
	ban_count_total INTEGER NOT NULL DEFAULT 0,
	provider_asn TEXT NOT NULL DEFAULT '',
	provider_cc TEXT NOT NULL DEFAULT '',
	provider_name TEXT NOT NULL DEFAULT '',
	provider_fetched_ts INTEGER
);
CREATE TABLE IF NOT EXISTS subnet_cache (
	subnet TEXT PRIMARY KEY,
	prefix INTEGER NOT NULL,
	first_seen_ts INTEGER NOT NULL,
	last_seen_ts INTEGER NOT NULL,
	fails INTEGER NOT NULL DEFAULT 0,
	bans INTEGER NOT NULL DEFAULT 0,
	unbans INTEGER NOT NULL DEFAULT 0,
	unique_ips INTEGER NOT NULL DEFAULT 0,
	last_ip TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS subnet_ip (
	subnet TEXT NOT NULL,
	ip TEXT NOT NULL,
	first_seen_ts INTEGER NOT NULL,
	last_seen_ts INTEGER NOT NULL,
	PRIMARY KEY (subnet, ip)
);
CREATE TABLE IF NOT EXISTS asn_cache (
	ip TEXT PRIMARY KEY,
	asn TEXT NOT NULL DEFAULT '',
	cc TEXT NOT NULL DEFAULT '',
	as_name TEXT NOT NULL DEFAULT '',
	fetched_ts INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS import_state (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL
);
`

// querier is satisfied by both *sql.DB and *sql.Tx, letting reads and
// writes share the same code whether or not a transaction is currently open.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store is the single-process, single-writer owner of the cache database.
type Store struct {
	db      *sql.DB
	limiter *rate.Limiter

	mu      sync.Mutex
	tx      *sql.Tx
	pending int
}

// Open creates/opens the SQLite database at path, applying the schema if
// absent, and returns a Store that batches commits no more often than
// commitInterval (spec.md §4.5 durability & batching).
func Open(path string, commitInterval time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening cache database %q: %w", path, err)
	}
	// modernc.org/sqlite connections are not safe for concurrent writers;
	// pin to a single connection so our own transaction handling is the
	// only source of serialization.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error applying cache schema: %w", err)
	}

	// A new limiter starts with a full bucket; spend that token so the first
	// MaybeCommit also waits a full commitInterval.
	limiter := rate.NewLimiter(rate.Every(commitInterval), 1)
	limiter.Allow()

	return &Store{
		db:      db,
		limiter: limiter,
	}, nil
}

// Close flushes any pending commit and closes the underlying database
// handle (spec.md §5 cancellation: "close flushes any pending commit
// best-effort").
func (s *Store) Close() error {
	if err := s.ForceCommit(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func (s *Store) beginLocked() (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	s.tx = tx
	return tx, nil
}

// querierLocked returns the active transaction if one is open, else the
// plain DB handle, for read-only queries that must observe uncommitted
// writes from earlier in the same tick.
func (s *Store) querierLocked() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// MaybeCommit commits pending writes if any are outstanding and the commit
// interval has elapsed (token-bucket paced via rate.Limiter). On commit
// failure the transaction is rolled back and pending state reset, per
// spec.md §4.5 / §7.
func (s *Store) MaybeCommit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil || s.pending == 0 {
		return nil
	}
	if !s.limiter.Allow() {
		return nil
	}
	return s.commitLocked()
}

// ForceCommit commits pending writes immediately, bypassing the rate
// limiter. Used at chunk boundaries during import and at shutdown.
func (s *Store) ForceCommit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	return s.commitLocked()
}

func (s *Store) commitLocked() error {
	err := s.tx.Commit()
	s.tx = nil
	s.pending = 0
	if err != nil {
		return fmt.Errorf("cache commit failed: %w", err)
	}
	return nil
}

// PendingOps reports the number of mutations queued since the last commit.
func (s *Store) PendingOps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// exec runs a mutating statement within the store's open (or newly begun)
// transaction and bumps the pending-ops counter.
func (s *Store) exec(query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.beginLocked()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}
	s.pending++
	return nil
}

// UpsertIPEvent applies one observed (ip, kind) event to ip_cache,
// subnet_ip, and subnet_cache (spec.md §4.5).
func (s *Store) UpsertIPEvent(ip string, ts int64, kind, jail string, countOK bool, subnet string, prefix int) error {
	var fails, oks, bans, unbans int64
	switch kind {
	case "FAIL":
		fails = 1
	case "OK":
		if countOK {
			oks = 1
		}
	case "BAN":
		bans = 1
	case "UNBAN":
		unbans = 1
	}

	if err := s.exec(`
		INSERT INTO ip_cache (ip, first_seen_ts, last_seen_ts, fails, oks, bans, unbans, last_event, last_jail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			last_seen_ts = MAX(ip_cache.last_seen_ts, excluded.last_seen_ts),
			fails = ip_cache.fails + excluded.fails,
			oks = ip_cache.oks + excluded.oks,
			bans = ip_cache.bans + excluded.bans,
			unbans = ip_cache.unbans + excluded.unbans,
			last_event = excluded.last_event,
			last_jail = excluded.last_jail
	`, ip, ts, ts, fails, oks, bans, unbans, kind, jail); err != nil {
		return fmt.Errorf("error upserting ip_cache row for %s: %w", ip, err)
	}

	if err := s.upsertSubnetIP(subnet, ip, ts); err != nil {
		return err
	}

	if err := s.exec(`
		INSERT INTO subnet_cache (subnet, prefix, first_seen_ts, last_seen_ts, fails, bans, unbans, last_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subnet) DO UPDATE SET
			last_seen_ts = MAX(subnet_cache.last_seen_ts, excluded.last_seen_ts),
			fails = subnet_cache.fails + excluded.fails,
			bans = subnet_cache.bans + excluded.bans,
			unbans = subnet_cache.unbans + excluded.unbans,
			last_ip = excluded.last_ip
	`, subnet, prefix, ts, ts, fails, bans, unbans, ip); err != nil {
		return fmt.Errorf("error upserting subnet_cache row for %s: %w", subnet, err)
	}

	return nil
}

func (s *Store) upsertSubnetIP(subnet, ip string, ts int64) error {
	if err := s.exec(`
		INSERT INTO subnet_ip (subnet, ip, first_seen_ts, last_seen_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subnet, ip) DO UPDATE SET
			last_seen_ts = MAX(subnet_ip.last_seen_ts, excluded.last_seen_ts)
	`, subnet, ip, ts, ts); err != nil {
		return fmt.Errorf("error upserting subnet_ip row for %s/%s: %w", subnet, ip, err)
	}
	return nil
}

// UpsertImportedBips merges one historical ban aggregate into ip_cache
// (spec.md §4.5 upsert_imported_bips). now is the wall-clock time to use
// for first_seen_ts/last_seen_ts defaults on brand-new rows.
func (s *Store) UpsertImportedBips(agg model.ImportedBan, now int64, subnet string, prefix int) error {
	initialLastSeen := now
	var lastBanTS any
	if agg.LastBanTS != nil {
		lastBanTS = *agg.LastBanTS
		if *agg.LastBanTS > initialLastSeen {
			initialLastSeen = *agg.LastBanTS
		}
	}

	if err := s.exec(`
		INSERT INTO ip_cach