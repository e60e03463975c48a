package cache

import (
	"database/sql"
	"fmt"

	"github.com/sshwatch/sshwatch/model"
)

func scanIPRow(rows interface {
	Scan(dest ...any) error
}) (model.IPRow, error) {
	var r model.IPRow
	err := rows.Scan(
		&r.IP, &r.FirstSeenTS, &r.LastSeenTS, &r.Fails, &r.OKs, &r.Bans, &r.Unbans,
		&r.LastEvent, &r.LastJail, &r.LastBanTS, &r.LastBanJail, &r.BanCountTotal,
		&r.ProviderASN, &r.ProviderCC, &r.ProviderName, &r.ProviderFetchedTS,
	)
	return r, err
}

const ipRowColumns = `ip, first_seen_ts, last_seen_ts, fails, oks, bans, unbans,
	last_event, last_jail, last_ban_ts, last_ban_jail, ban_count_total,
	provider_asn, provider_cc, provider_name, provider_fetched_ts`

const ipRowColumnsQualified = `ip_cache.ip, ip_cache.first_seen_ts, ip_cache.last_seen_ts, ip_cache.fails, ip_cache.oks, ip_cache.bans, ip_cache.unbans,
	ip_cache.last_event, ip_cache.last_jail, ip_cache.last_ban_ts, ip_cache.last_ban_jail, ip_cache.ban_count_total,
	ip_cache.provider_asn, ip_cache.provider_cc, ip_cache.provider_name, ip_cache.provider_fetched_ts`

// ListRealtimeSeedIPs returns the top-n most-recently-seen IPs, used to
// bootstrap the in-memory realtime counters at startup (spec.md §4.6 step 3).
func (s *Store) ListRealtimeSeedIPs(n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.querierLocked().Query(`SELECT ip FROM ip_cache ORDER BY last_seen_ts DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("error listing realtime seed ips: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// ListIPCache returns IPRow projections, filtered and sorted per spec.md
// §4.5 list_ip_cache.
func (s *Store) ListIPCache(search string, limit int) ([]model.IPRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + ipRowColumns + ` FROM ip_cache`
	var args []any
	if search != "" {
		query += ` WHERE LOWER(ip) LIKE ? OR LOWER(provider_name) LIKE ? OR LOWER(provider_asn) LIKE ?`
		pat := like(search)
		args = append(args, pat, pat, pat)
	}
	query += ` ORDER BY ban_count_total DESC, bans DESC, fails DESC, last_seen_ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.querierLocked().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing ip_cache: %w", err)
	}
	defer rows.Close()

	var out []model.IPRow
	for rows.Next() {
		r, err := scanIPRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetIPRow looks up a single IP's cache row.
func (s *Store) GetIPRow(ip string) (model.IPRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.querierLocked().QueryRow(`SELECT `+ipRowColumns+` FROM ip_cache WHERE ip = ?`, ip)
	r, err := scanIPRow(row)
	if err == sql.ErrNoRows {
		return model.IPRow{}, false, nil
	}
	if err != nil {
		return model.IPRow{}, false, fmt.Errorf("error reading ip_cache row for %s: %w", ip, err)
	}
	return r, true, nil
}

const subnetRowColumns = `subnet, prefix, first_seen_ts, last_seen_ts, fails, bans, unbans, unique_ips, last_ip`

func scanSubnetRow(rows interface{ Scan(dest ...any) error }) (model.SubnetRow, error) {
	var r model.SubnetRow
	err := rows.Scan(&r.Subnet, &r.Prefix, &r.FirstSeenTS, &r.LastSeenTS, &r.Fails, &r.Bans, &r.Unbans, &r.UniqueIPs, &r.LastIP)
	return r, err
}

// ListTopSubnets returns SubnetRow projections sorted per spec.md §4.5
// list_top_subnets.
func (s *Store) ListTopSubnets(topN int, search string) ([]model.SubnetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + subnetRowColumns + ` FROM subnet_cache`
	var args []any
	if search != "" {
		query += ` WHERE LOWER(subnet) LIKE ?`
		args = append(args, like(search))
	}
	query += ` ORDER BY (bans + fails) DESC, unique_ips DESC, last_seen_ts DESC LIMIT ?`
	args = append(args, topN)

	rows, err := s.querierLocked().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing subnet_cache: %w", err)
	}
	defer rows.Close()

	var out []model.SubnetRow
	for rows.Next() {
		r, err := scanSubnetRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSubnetRow looks up a single subnet's cache row.
func (s *Store) GetSubnetRow(subnet string) (model.SubnetRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.querierLocked().QueryRow(`SELECT `+subnetRowColumns+` FROM subnet_cache WHERE subnet = ?`, subnet)
	r, err := scanSubnetRow(row)
	if err == sql.ErrNoRows {
		return model.SubnetRow{}, false, nil
	}
	if err != nil {
		return model.SubnetRow{}, false, fmt.Errorf("error reading subnet_cache row for %s: %w", subnet, err)
	}
	return r, true, nil
}

// ListIPsInSubnet lists the IPs belonging to subnet, ordered by ban count
// total, bans, fails, then most-recently-seen.
func (s *Store) ListIPsInSubnet(subnet string, limit int) ([]model.IPRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.querierLocked().Query(`
		SELECT `+ipRowColumnsQualified+`
		FROM ip_cache
		JOIN subnet_ip ON subnet_ip.ip = ip_cache.ip
		WHERE subnet_ip.subnet = ?
		ORDER BY ip_cache.ban_count_total DESC, ip_cache.bans DESC, ip_cache.fails DESC, ip_cache.last_seen_ts DESC
		LIMIT ?
	`, subnet, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing ips in subnet %s: %w", subnet, err)
	}
	defer rows.Close()

	var out []model.IPRow
	for rows.Next() {
		r, err := scanIPRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListIPsInASN lists the IPs whose denormalized provider_asn matches asn.
func (s *Store) ListIPsInASN(asn string, limit int) ([]model.IPRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.querierLocked().Query(`
		SELECT `+ipRowColumns+`
		FROM ip_cache
		WHERE provider_asn = ?
		ORDER BY ban_count_total DESC, bans DESC, fails DESC, last_seen_ts DESC
		LIMIT ?
	`, asn, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing ips in asn %s: %w", asn, err)
	}
	defer rows.Close()

	var out []model.IPRow
	for rows.Next() {
		r, err := scanIPRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListASNSummary returns the ASN projection grouped over ip_cache (spec.md
// §4.5 list_asn_summary).
func (s *Store) ListASNSummary(search string, limit int) ([]model.ASNSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT provider_asn AS asn, MAX(provider_name) AS as_name, MAX(provider_cc) AS cc,
		       COUNT(*) AS ip_count, SUM(ban_count_total) AS ban_total_sum,
		       SUM(bans) AS bans_sum, SUM(fails) AS fails_sum, MAX(provider_fetched_ts) AS max_fetched_ts
		FROM ip_cache
		WHERE provider_asn != ''
		GROUP BY provider_asn`
	var args []any
	if search != "" {
		query += ` HAVING LOWER(asn) LIKE ? OR LOWER(as_name) LIKE ? OR LOWER(cc) LIKE ?`
		pat := like(search)
		args = append(args, pat, pat, pat)
	}
	query += ` ORDER BY ban_total_sum DESC, bans_sum DESC, fails_sum DESC, ip_count DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.querierLocked().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing asn summary: %w", err)
	}
	defer rows.Close()

	var out []model.ASNSummary
	for rows.Next() {
		var r model.ASNSummary
		var maxFetched sql.NullInt64
		if err := rows.Scan(&r.ASN, &r.AsName, &r.CC, &r.IPCount, &r.BanTotalSum, &r.BansSum, &r.FailsSum, &maxFetched); err != nil {
			return nil, err
		}
		r.MaxFetchedTS = maxFetched.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetASNSummary looks up a single ASN's summary row by exact match, for the
// detail pane (spec.md §4.8 get_asn_details) — unlike ListASNSummary's
// substring search, this must not return a different, higher-ranked ASN
// whose id happens to contain asn as a substring.
func (s *Store) GetASNSummary(asn string) (model.ASNSummary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.querierLocked().QueryRow(`
		SELECT provider_asn AS asn, MAX(provider_name) AS as_name, MAX(provider_cc) AS cc,
		       COUNT(*) AS ip_count, SUM(ban_count_total) AS ban_total_sum,
		       SUM(bans) AS bans_sum, SUM(fails) AS fails_sum, MAX(provider_fetched_ts) AS max_fetched_ts
		FROM ip_cache
		WHERE provider_asn = ?
		GROUP BY provider_asn
	`, asn)

	var r model.ASNSummary
	var maxFetched sql.NullInt64
	err := row.Scan(&r.ASN, &r.AsName, &r.CC, &r.IPCount, &r.BanTotalSum, &r.BansSum, &r.FailsSum, &maxFetched)
	if err == sql.ErrNoRows {
		return model.ASNSummary{}, false, nil
	}
	if err != nil {
		return model.ASNSummary{}, false, fmt.Errorf("error reading asn summary for %s: %w", asn, err)
	}
	r.MaxFetchedTS = maxFetched.Int64
	return r, true, nil
}

// ListIPsNeedingASNRefresh returns up to batch IPs whose ASN record is
// missing or stale, ordered ascending and resuming strictly after cursor
// (spec.md §4.7 step 2).
func (s *Store) ListIPsNeedingASNRefresh(cursor string, batch int, minFetchedTS int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.querierLocked().Query(`
		SELECT ip_cache.ip
		FROM ip_cache
		LEFT JOIN asn_cache ON asn_cache.ip = ip_cache.ip
		WHERE (asn_cache.ip IS NULL OR asn_cache.fetched_ts < ?)
		  AND ip_cache.ip > ?
		ORDER BY ip_cache.ip ASC
		LIMIT ?
	`, minFetchedTS, cursor, batch)
	if err != nil {
		return nil, fmt.Errorf("error listing ips needing asn refresh: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}
