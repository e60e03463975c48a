// Package parser extracts (ip, kind[, jail]) triples from SSH auth and
// fail2ban jail log lines. Both parsers are pure functions over one line,
// ported directly from original_source/parsers.py.
package parser

import (
	"regexp"
	"strings"

	"github.com/sshwatch/sshwatch/constants"
	"github.com/sshwatch/sshwatch/util"
)

var (
	ipRE = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

	sshFailMarkers = []string{"Failed password", "Invalid user", "authentication failure"}
	sshOKMarkers   = []string{"Accepted password", "Accepted publickey"}

	// jailRE matches the bracketed jail name immediately preceding the
	// Ban/Unban action, e.g. "... NOTICE [sshd] Ban 1.2.3.4" — this skips
	// over any leading "[pid]" bracket fail2ban also logs.
	jailRE = regexp.MustCompile(`\[([A-Za-z0-9_.:-]+)\]\s+(?:Ban|Unban)\b`)
)

// SSHEvent is the result of a successful ParseSSHLine call.
type SSHEvent struct {
	IP   string
	Kind string
}

// ParseSSHLine extracts an IPv4 address and FAIL/OK classification from one
// sshd auth.log line (spec.md §4.2). Returns ok=false if the line carries no
// recognizable IPv4 or does not match any classification marker.
func ParseSSHLine(line string) (ev SSHEvent, ok bool) {
	ip, found := firstValidIPv4(line)
	if !found {
		return SSHEvent{}, false
	}

	switch {
	case containsAny(line, sshFailMarkers):
		return SSHEvent{IP: ip, Kind: constants.KindFail}, true
	case containsAny(line, sshOKMarkers):
		return SSHEvent{IP: ip, Kind: constants.KindOK}, true
	default:
		return SSHEvent{}, false
	}
}

// JailEvent is the result of a successful ParseJailLine call.
type JailEvent struct {
	IP   string
	Kind string
	Jail string
}

// ParseJailLine extracts an IPv4 address, BAN/UNBAN classification, and an
// optional jail name from one fail2ban.log line (spec.md §4.2). BAN matching
// precedes UNBAN in scan order, since "Unban" also contains "ban" but never
// the literal "Ban " token fail2ban emits.
func ParseJailLine(line string) (ev JailEvent, ok bool) {
	ip, found := firstValidIPv4(line)
	if !found {
		return JailEvent{}, false
	}

	jail := ""
	if m := jailRE.FindStringSubmatch(line); m != nil {
		jail = m[1]
	}

	switch {
	case strings.Contains(line, "Ban "+ip):
		return JailEvent{IP: ip, Kind: constants.KindBan, Jail: jail}, true
	case strings.Contains(line, "Unban "+ip):
		return JailEvent{IP: ip, Kind: constants.KindUnban, Jail: jail}, true
	default:
		return JailEvent{}, false
	}
}

// firstValidIPv4 returns the first dotted-quad substring in line that also
// parses as a valid IPv4 address (invariant 8, spec.md §8: a regex match
// alone, e.g. "999.1.1.1", is not sufficient).
func firstValidIPv4(line string) (string, bool) {
	for _, m := range ipRE.FindAllString(line, -1) {
		if util.IsValidIPv4(m) {
			return m, true
		}
	}
	return "", false
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}


