// Package importer reads an external fail2ban SQLite database and produces
// per-IP historical ban aggregates (spec.md §4.3), ported from
// original_source/fail2ban_sqlite.py.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/sshwatch/sshwatch/model"
)

// Fingerprint is the (mtime, size) pair used to detect whether the external
// database has changed since the last import (spec.md §3 ImportState).
type Fingerprint struct {
	ModTime int64
	Size    int64
}

// String renders the fingerprint as "mtime:size".
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d:%d", f.ModTime, f.Size)
}

// ComputeFingerprint stats path and returns its fingerprint.
func ComputeFingerprint(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("error statting import source %q: %w", path, err)
	}
	return Fingerprint{ModTime: info.ModTime().Unix(), Size: info.Size()}, nil
}

// HistoryImporter reads a read-only snapshot of an external jail database.
type HistoryImporter struct {
	Path string
}

// New returns a HistoryImporter over the sqlite database at path.
func New(path string) *HistoryImporter {
	return &HistoryImporter{Path: path}
}

// openReadOnly opens the external database in SQLite's read-only URI mode,
// tolerating concurrent writers (spec.md §5 shared resources).
func (h *HistoryImporter) openReadOnly() (*sql.DB, error) {
	uri := fmt.Sprintf("file:%s?mode=ro", h.Path)
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("error opening import source %q: %w", h.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening import source %q: %w", h.Path, err)
	}
	return db, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var found string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ImportAggregates reads the external database and returns per-IP ban
// aggregates (spec.md §4.3). Schema errors abort only the import and are
// returned as an error for the engine to log as ERR (spec.md §7). ctx bounds
// every query so a caller running the import inside an errgroup can actually
// cancel a long scan instead of blocking until it finishes on its own.
func (h *HistoryImporter) ImportAggregates(ctx context.Context) (map[string]model.ImportedBan, error) {
	db, err := h.openReadOnly()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	hasBips, err := tableExists(ctx, db, "bips")
	if err != nil {
		return nil, fmt.Errorf("error introspecting import schema: %w", err)
	}
	if hasBips {
		return h.importFromBips(ctx, db)
	}

	hasBans, err := tableExists(ctx, db, "bans")
	if err != nil {
		return nil, fmt.Errorf("error introspecting import schema: %w", err)
	}
	if hasBans {
		return h.importFromBans(ctx, db)
	}

	return nil, fmt.Errorf("import source %q has neither a bips nor bans table", h.Path)
}

func (h *HistoryImporter) importFromBips(ctx context.Context, db *sql.DB) (map[string]model.ImportedBan, error) {
	hasBanCount, err := columnExists(ctx, db, "bips", "bancount")
	if err != nil {
		return nil, fmt.Errorf("error introspecting bips columns: %w", err)
	}

	totalsQuery := `SELECT ip, COUNT(*) AS total, MAX(timeofban) AS last_ts FROM bips GROUP BY ip`
	if hasBanCount {
		totalsQuery = `SELECT ip, SUM(bancount) AS total, MAX(timeofban) AS last_ts FROM bips GROUP BY ip`
	}

	out := make(map[string]model.ImportedBan)
	rows, err := db.QueryContext(ctx, totalsQuery)
	if err != nil {
		return nil, fmt.Errorf("error querying bips totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ip string
		var total int64
		var lastTS sql.NullInt64
		if err := rows.Scan(&ip, &total, &lastTS); err != nil {
			return nil, err
		}
		agg := model.ImportedBan{IP: ip, BanCountTotal: total}
		out[ip] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for ip, agg := range out {
		jail, ts, err := lastBanRow(ctx, db, "bips", ip)
		if err != nil {
			return nil, fmt.Errorf("error resolving last ban for %s: %w", ip, err)
		}
		agg.LastBanJail = jail
		agg.LastBanTS = ts
		out[ip] = agg
	}

	return out, nil
}

func (h *HistoryImporter) importFromBans(ctx context.Context, db *sql.DB) (map[string]model.ImportedBan, error) {
	out := make(map[string]model.ImportedBan)
	rows, err := db.QueryContext(ctx, `SELECT ip, COUNT(*) AS total FROM bans GROUP BY ip`)
	if err != nil {
		return nil, fmt.Errorf("error querying bans totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ip string
		var total int64
		if err := rows.Scan(&ip, &total); err != nil {
			return nil, err
		}
		out[ip] = model.ImportedBan{IP: ip, BanCountTotal: total}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for ip, agg := range out {
		jail, ts, err := lastBanRow(ctx, db, "bans", ip)
		if err != nil {
			return nil, fmt.Errorf("error resolving last ban for %s: %w", ip, err)
		}
		agg.LastBanJail = jail
		agg.LastBanTS = ts
		out[ip] = agg
	}

	return out, nil
}

// IPHistory reads the full per-ban history for one IP, most recent first,
// for the detail view (SPEC_FULL.md §12, ported from
// original_source/fail2ban_sqlite.py:fetch_ip_history_bips). Returns an
// empty slice if the source has neither a bips nor bans table, or the IP
// has no rows — never an error for that case.
func (h *HistoryImporter) IPHistory(ip string) ([]model.BanHistoryRow, error) {
	db, err := h.openReadOnly()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx := context.Background()
	table := ""
	if ok, err := tableExists(ctx, db, "bips"); err != nil {
		return nil, fmt.Errorf("error introspecting import schema: %w", err)
	} else if ok {
		table = "bips"
	} else if ok, err := tableExists(ctx, db, "bans"); err != nil {
		return nil, fmt.Errorf("error introspecting import schema: %w", err)
	} else if ok {
		table = "bans"
	} else {
		return nil, nil
	}

	hasBanTime, err := columnExists(ctx, db, table, "bantime")
	if err != nil {
		return nil, fmt.Errorf("error introspecting %s columns: %w", table, err)
	}
	hasBanCount, err := columnExists(ctx, db, table, "bancount")
	if err != nil {
		return nil, fmt.Errorf("error introspecting %s columns: %w", table, err)
	}

	banTimeExpr, banCountExpr := "0", "1"
	if hasBanTime {
		banTimeExpr = "bantime"
	}
	if hasBanCount {
		banCountExpr = "bancount"
	}

	query := fmt.Sprintf(`SELECT jail, timeofban, %s, %s FROM %s WHERE ip = ? ORDER BY timeofban DESC`, banTimeExpr, banCountExpr, table)
	rows, err := db.Query(query, ip)
	if err != nil {
		return nil, fmt.Errorf("error querying %s history for %s: %w", table, ip, err)
	}
	defer rows.Close()

	var out []model.BanHistoryRow
	for rows.Next() {
		var r model.BanHistoryRow
		if err := rows.Scan(&r.Jail, &r.TimeOfBan, &r.BanTime, &r.BanCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// lastBanRow resolves the (jail, timeofban) of the most recent ban row for
// ip in table, per spec.md §4.3's "second lookup ordering by timeofban DESC
// limit 1".
func lastBanRow(ctx context.Context, db *sql.DB, table, ip string) (jail string, ts *int64, err error) {
	row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT jail, timeofban FROM %s WHERE ip = ? ORDER BY timeofban DESC LIMIT 1`, table), ip)
	var j string
	var t sql.NullInt64
	if scanErr := row.Scan(&j, &t); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", nil, nil
		}
		return "", nil, scanErr
	}
	if !t.Valid {
		return j, nil, nil
	}
	v := t.Int64
	return j, &v, nil
}
