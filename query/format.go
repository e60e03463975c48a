package query

import (
	"fmt"

	"github.com/sshwatch/sshwatch/util"
)

// FormatIPDetails renders d as the lines shown in the viewer's IP detail
// pane, mirroring original_source/app.py:get_ip_details line-for-line.
func FormatIPDetails(d IPDetails) []string {
	var lines []string
	lines = append(lines, "IP: "+d.IP, "")

	if d.Realtime != nil {
		lines = append(lines,
			"Realtime counters:",
			fmt.Sprintf("  FAIL=%d OK=%d BAN=%d UNBAN=%d", d.Realtime["FAIL"], d.Realtime["OK"], d.Realtime["BAN"], d.Realtime["UNBAN"]),
			"",
		)
	}

	if d.HasRow {
		r := d.Row
		lines = append(lines,
			"Cache ip_cache:",
			"  first_seen: "+util.FmtEpochUTC(r.FirstSeenTS),
			"  last_seen : "+util.FmtEpochUTC(r.LastSeenTS),
			fmt.Sprintf("  fails=%d oks=%d bans=%d unbans=%d", r.Fails, r.OKs, r.Bans, r.Unbans),
			fmt.Sprintf("  last_event=%s last_jail=%s", r.LastEvent, r.LastJail),
			"",
			"Fail2ban history import (aggregates):",
			fmt.Sprintf("  ban_count_total=%d", r.BanCountTotal),
			"  last_ban_ts  ="+fmtNullableTS(r.LastBanTS),
			"  last_ban_jail="+r.LastBanJail,
			"",
			"Provider (cached):",
			fmt.Sprintf("  ASN=%s CC=%s", r.ProviderASN, r.ProviderCC),
			"  Name="+r.ProviderName,
			"  Updated="+fmtNullableTS(r.ProviderFetchedTS),
			"",
		)
	} else {
		lines = append(lines, "Cache ip_cache: (no row)", "")
	}

	switch {
	case d.TopSubnetRank != nil:
		lines = append(lines, fmt.Sprintf("belongs_to_top10_subnets: yes (%s)", d.Subnet))
	case d.Subnet != "":
		lines = append(lines, "belongs_to_top10_subnets: no")
	default:
		lines = append(lines, "belongs_to_top10_subnets: -")
	}
	lines = append(lines, "")

	lines = append(lines, "Fail2ban history:")
	switch {
	case d.HistoryErr != nil:
		lines = append(lines, "  error: "+d.HistoryErr.Error())
	case len(d.History) == 0:
		lines = append(lines, "  (no rows)")
	default:
		for _, h := range d.History {
			lines = append(lines, fmt.Sprintf("  %s jail=%s bantime=%d bancount=%d", util.FmtEpochUTC(h.TimeOfBan), h.Jail, h.BanTime, h.BanCount))
		}
	}
	lines = append(lines, "")

	lines = append(lines, "Recent events (in-memory, up to 50):")
	if len(d.Events) == 0 {
		lines = append(lines, "  (none)")
	} else {
		for _, ev := range d.Events {
			lines = append(lines, fmt.Sprintf("  %s %s %s jail=%s", util.FmtEpochUTC(ev.TS), ev.Src, ev.Kind, ev.Jail))
		}
	}
	return lines
}

// FormatSubnetDetails renders d as the lines shown in the viewer's subnet
// detail pane, mirroring original_source/app.py:get_subnet_details.
func FormatSubnetDetails(d SubnetDetails) []string {
	var lines []string
	lines = append(lines, "Subnet: "+d.Subnet, "")

	if d.HasRow {
		r := d.Row
		lines = append(lines,
			"Subnet cache:",
			fmt.Sprintf("  prefix=%d", r.Prefix),
			"  first_seen="+util.FmtEpochUTC(r.FirstSeenTS),
			"  last_seen ="+util.FmtEpochUTC(r.LastSeenTS),
			fmt.Sprintf("  fails=%d bans=%d unbans=%d unique_ips=%d", r.Fails, r.Bans, r.Unbans, r.UniqueIPs),
			"  last_ip="+r.LastIP,
			"",
		)
	} else {
		lines = append(lines, "Subnet cache: (no row)", "")
	}

	if d.TopRank != nil {
		lines = append(lines, fmt.Sprintf("belongs_to_top10_subnets: yes (rank %d/%d)", *d.TopRank, d.TopOf))
	} else {
		lines = append(lines, "belongs_to_top10_subnets: no")
	}
	lines = append(lines, "")

	lines = append(lines, "Top IPs in subnet:")
	if len(d.MemberIPs) == 0 {
		lines = append(lines, "  (no rows)")
	} else {
		for _, r := range d.MemberIPs {
			lines = append(lines, fmt.Sprintf("  %s ban_total=%d bans=%d fails=%d last_seen=%s", r.IP, r.BanCountTotal, r.Bans, r.Fails, util.FmtEpochUTC(r.LastSeenTS)))
		}
	}
	return lines
}

// FormatASNDetails renders d as the lines shown in the viewer's ASN detail
// pane, mirroring original_source/app.py:get_asn_details.
func FormatASNDetails(d ASNDetails) []string {
	var lines []string
	lines = append(lines, "ASN: "+d.ASN, "")

	if d.HasSummary {
		r := d.Summary
		lines = append(lines,
			"ASN summary:",
			"  CC="+r.CC,
			"  Name="+r.AsName,
			fmt.Sprintf("  ip_count=%d", r.IPCount),
			fmt.Sprintf("  ban_total_sum=%d bans_sum=%d fails_sum=%d", r.BanTotalSum, r.BansSum, r.FailsSum),
			"  last_fetch="+util.FmtEpochUTC(r.MaxFetchedTS),
			"",
		)
	} else {
		lines = append(lines, "ASN summary: (no row)", "")
	}

	lines = append(lines, "IPs in this ASN:")
	if len(d.MemberIPs) == 0 {
		lines = append(lines, "  (no rows)")
	} else {
		for _, r := range d.MemberIPs {
			lines = append(lines, fmt.Sprintf("  %s ban_total=%d bans=%d fails=%d last_seen=%s", r.IP, r.BanCountTotal, r.Bans, r.Fails, util.FmtEpochUTC(r.LastSeenTS)))
		}
	}
	return lines
}

func fmtNullableTS(ts *int64) string {
	if ts == nil {
		return ""
	}
	return util.FmtEpochUTC(*ts)
}
