// Package model defines the concrete record and row shapes shared between
// the cache store, the engine, and the query layer. None of these are
// dynamic/map-shaped: see DESIGN NOTES in spec.md §9.
package model

// Event is an ephemeral observation, held only in the engine's in-memory
// rings (spec.md §3 Event). Never persisted.
type Event struct {
	TS   int64
	Src  string
	Kind string
	IP   string
	Jail string
	Msg  string
}

// IPRow mirrors IPRecord (spec.md §3) exactly.
type IPRow struct {
	IP                string
	FirstSeenTS       int64
	LastSeenTS        int64
	Fails             int64
	OKs               int64
	Bans              int64
	Unbans            int64
	LastEvent         string
	LastJail          string
	LastBanTS         *int64
	LastBanJail       string
	BanCountTotal     int64
	ProviderASN       string
	ProviderCC        string
	ProviderName      string
	ProviderFetchedTS *int64
}

// SubnetRow mirrors SubnetRecord (spec.md §3).
type SubnetRow struct {
	Subnet     string
	Prefix     int
	FirstSeenTS int64
	LastSeenTS  int64
	Fails       int64
	Bans        int64
	Unbans      int64
	UniqueIPs   int64
	LastIP      string
}

// ASNInfo is the result of one bulk WHOIS lookup (spec.md §4.4) and also the
// shape of an ASNRecord row (spec.md §3), since they carry identical fields
// plus the owning IP.
type ASNInfo struct {
	IP         string
	ASN        string
	CC         string
	AsName     string
	FetchedTS  int64
}

// ASNSummary is the grouped-by-ASN projection (spec.md §4.5 list_asn_summary).
type ASNSummary struct {
	ASN            string
	AsName         string
	CC             string
	IPCount        int64
	BanTotalSum    int64
	BansSum        int64
	FailsSum       int64
	MaxFetchedTS   int64
}

// RealtimeRow is one entry of the in-memory realtime projection (spec.md §4.8).
type RealtimeRow struct {
	IP       string
	Counters map[string]int64
}

// ImportedBan is the per-IP aggregate produced by the historical importer
// (spec.md §4.3).
type ImportedBan struct {
	IP            string
	BanCountTotal int64
	LastBanTS     *int64
	LastBanJail   string
}

// BanHistoryRow is one row of an IP's per-ban history, read live from the
// external fail2ban database for the detail view (SPEC_FULL.md §12).
type BanHistoryRow struct {
	Jail      string
	TimeOfBan int64
	BanTime   int64
	BanCount  int64
}


