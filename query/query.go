// Package query exposes read-only projections over the cache store, engine
// in-memory state, and external history source for the viewer (C8, spec.md
// §4.8). Ported from original_source/app.py's get_* methods; no SQL ever
// leaks past this package into the viewer.
package query

import (
	"strings"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/engine"
	"github.com/sshwatch/sshwatch/importer"
	"github.com/sshwatch/sshwatch/model"
	"github.com/sshwatch/sshwatch/util"
)

// Service is the single entry point the viewer uses to read data; it never
// touches *sql.DB or engine internals directly.
type Service struct {
	store     *cache.Store
	eng       *engine.Engine
	cfg       config.Config
	historian *importer.HistoryImporter
}

// New constructs a Service. historian may be nil if f2b_sqlite is unset.
func New(store *cache.Store, eng *engine.Engine, cfg config.Config, historian *importer.HistoryImporter) *Service {
	return &Service{store: store, eng: eng, cfg: cfg, historian: historian}
}

// RealtimeRows returns the in-memory realtime counters, filtered by search
// (substring match on ip), already sorted by the engine (spec.md §4.8
// get_realtime_rows).
func (s *Service) RealtimeRows(search string) []model.RealtimeRow {
	rows := s.eng.RealtimeSnapshot()
	if search == "" {
		return rows
	}
	needle := strings.ToLower(search)
	out := rows[:0:0]
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.IP), needle) {
			out = append(out, r)
		}
	}
	return out
}

// IPCacheRows returns the persisted per-IP cache rows (spec.md §4.8
// get_sqlite_rows).
func (s *Service) IPCacheRows(search string, limit int) ([]model.IPRow, error) {
	return s.store.ListIPCache(search, limit)
}

// SubnetRows returns the top-N subnet projection (spec.md §4.8 get_subnet_rows).
func (s *Service) SubnetRows(search string) ([]model.SubnetRow, error) {
	return s.store.ListTopSubnets(s.cfg.TopSubnets, search)
}

// ASNRows returns the ASN summary projection (spec.md §4.8 get_asn_rows).
func (s *Service) ASNRows(search string) ([]model.ASNSummary, error) {
	return s.store.ListASNSummary(search, 200)
}

// EventsLines renders the most recent maxLines global events as
// viewer-ready text lines (spec.md §4.8 get_events_lines).
func EventsLines(events []model.Event, maxLines int) []string {
	if maxLines > 0 && len(events) > maxLines {
		events = events[len(events)-maxLines:]
	}
	out := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case "INFO", "ERR":
			out = append(out, util.FmtEpochUTC(ev.TS)+" "+ev.Kind+" "+ev.Msg)
		default:
			line := util.FmtEpochUTC(ev.TS) + " " + ev.Src + " " + ev.Kind + " " + ev.IP
			if ev.Jail != "" {
				line += " jail=" + ev.Jail
			}
			out = append(out, line)
		}
	}
	return out
}

// EventsLines is a convenience method pulling from the engine's global ring.
func (s *Service) EventsLines(maxLines int) []string {
	return EventsLines(s.eng.GlobalEvents(), maxLines)
}

// IPDetails is the structured detail view for one IP (spec.md §4.8
// get_ip_details), separating data gathering from text formatting.
type IPDetails struct {
	IP            string
	Realtime      map[string]int64 // nil if no realtime entry
	Row           model.IPRow
	HasRow        bool
	Subnet        string
	TopSubnetRank *int // nil when the IP's subnet is not in the top-N set
	History       []model.BanHistoryRow
	HistoryErr    error
	Events        []model.Event
}

// GetIPDetails gathers everything the detail pane needs for one IP.
func (s *Service) GetIPDetails(ip string) (IPDetails, error) {
	d := IPDetails{IP: ip}

	d.Realtime = s.eng.RealtimeFor(ip)

	row, ok, err := s.store.GetIPRow(ip)
	if err != nil {
		return d, err
	}
	d.Row, d.HasRow = row, ok

	if subnet, err := util.Subnet(ip, s.cfg.SubnetPrefix); err == nil {
		d.Subnet = subnet
		top, err := s.store.ListTopSubnets(s.cfg.TopSubnets, "")
		if err == nil {
			for i, r := range top {
				if r.Subnet == subnet {
					rank := i + 1
					d.TopSubnetRank = &rank
					break
				}
			}
		}
	}

	if s.historian != nil {
		d.History, d.HistoryErr = s.historian.IPHistory(ip)
	}

	d.Events = s.eng.IPEvents(ip)
	return d, nil
}

// SubnetDetails is the structured detail view for one subnet (spec.md §4.8
// get_subnet_details).
type SubnetDetails struct {
	Subnet     string
	Row        model.SubnetRow
	HasRow     bool
	TopRank    *int
	TopOf      int
	MemberIPs  []model.IPRow
}

// GetSubnetDetails gathers everything the detail pane needs for one subnet.
func (s *Service) GetSubnetDetails(subnet string) (SubnetDetails, error) {
	d := SubnetDetails{Subnet: subnet}

	row, ok, err := s.store.GetSubnetRow(subnet)
	if err != nil {
		return d, err
	}
	d.Row, d.HasRow = row, ok

	top, err := s.store.ListTopSubnets(s.cfg.TopSubnets, "")
	if err == nil {
		d.TopOf = len(top)
		for i, r := range top {
			if r.Subnet == subnet {
				rank := i + 1
				d.TopRank = &rank
				break
			}
		}
	}

	ips, err := s.store.ListIPsInSubnet(subnet, 50)
	if err != nil {
		return d, err
	}
	d.MemberIPs = ips
	return d, nil
}

// ASNDetails is the structured detail view for one ASN (spec.md §4.8
// get_asn_details).
type ASNDetails struct {
	ASN       string
	Summary   model.ASNSummary
	HasSummary bool
	MemberIPs []model.IPRow
}

// GetASNDetails gathers everything the detail pane needs for one ASN.
func (s *Service) GetASNDetails(asn string) (ASNDetails, error) {
	d := ASNDetails{ASN: asn}

	summary, ok, err := s.store.GetASNSummary(asn)
	if err != nil {
		return d, err
	}
	d.Summary, d.HasSummary = summary, ok

	ips, err := s.store.ListIPsInASN(asn, 50)
	if err != nil {
		return d, err
	}
	d.MemberIPs = ips
	return d, nil
}
