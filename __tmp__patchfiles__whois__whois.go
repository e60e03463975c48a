// Package whois implements the Team Cymru bulk IP-to-ASN lookup protocol
// (spec.md §4.4). Ported from original_source/asn.py:cymru_bulk_lookup_nc,
// but dials the TCP/43 service directly over net.Conn instead of shelling
// out to nc — see DESIGN.md for why no third-party whois client library is
// used here.
package whois

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sshwatch/sshwatch/model"
)

// Timeout converts a float-seconds config value (as spec.md §6's asn_timeout
// is expressed) into a time.Duration for Lookup.
func Timeout(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// BulkClient queries whois.cymru.com-compatible bulk IP-to-ASN services.
type BulkClient struct {
	// Dial allows tests to substitute a fake listener; defaults to
	// net.DialTimeout against host:43.
	Dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewBulkClient returns a BulkClient that dials real TCP connections.
func NewBulkClient() *BulkClient {
	return &BulkClient{Dial: net.DialTimeout}
}

// Lookup performs one bulk query for ips against host:43 and returns a map
// from IP to resolved ASNInfo. Empty input short-circuits without any
// network call (spec.md §4.4). On connection or write failure an empty map
// and the error are returned; on a read failure or timeout the results
// parsed so far are returned along with the error. Callers in the engine
// treat any error as "no results this round" per the error taxonomy in
// spec.md §7.
func (c *BulkClient) Lookup(ips []string, host string, timeout time.Duration) (map[string]model.ASNInfo, error) {
	if len(ips) == 0 {
		return map[string]model.ASNInfo{}, nil
	}

	dial := c.Dial
	if dial == nil {
		dial = net.DialTimeout
	}

	conn, err := dial("tcp", net.JoinHostPort(host, "43"), timeout)
	if err != nil {
		return map[string]model.ASNInfo{}, fmt.Errorf("error dialing %s: %w", host, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))

	var body strings.Builder
	body.WriteString("begin\nverbose\n")
	for _, ip := range ips {
		body.WriteString(ip)
		body.WriteByte('\n')
	}
	body.WriteString("end\n")

	if _, err := conn.Write([]byte(body.String())); err != nil {
		return map[string]model.ASNInfo{}, fmt.Errorf("error writing bulk query: %w", err)
	}

	fetchedTS := time.Now().UTC().Unix()
	results := make(map[string]model.ASNInfo)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		info, ok := parseLine(scanner.Text(), fetchedTS)
		if !ok {
			continue
		}
		results[info.IP] = info
	}
	// scanner.Err() surfaces read failures (including deadline expiry) but
	// partial results gathered so far are still returned best-effort.
	if err := scanner.Err(); err != nil {
		return results, fmt.Errorf("error reading bulk response: %w", err)
	}

	return results, nil
}

// parseLine parses one non-header response line, dispatching on field count
// (spec.md §4.4: 7+ fields is verbose, 6 is the non-verbose fallback).
func parseLine(line string, fetchedTS int64) (model.ASNInfo, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return model.ASNInfo{}, false
	}
	if strings.HasPrefix(trimmed, "AS") || strings.HasPrefix(trimmed, "Bulk mode") || strings.HasPrefix(trimmed, "#") {
		return model.ASNInfo{}, false
	}

	fields := splitPipe(trimmed)

	switch {
	case len(fields) >= 7:
		return model.ASNInfo{
			ASN:       fields[0],
			IP:        fields[1],
			CC:        fields[3],
			AsName:    fields[6],
			FetchedTS: fetchedTS,
		}, true
	case len(fields) == 6:
		return model.ASNInfo{
			ASN:       fields[0],
			IP:        fields[1],
			CC:        fields[2],
			AsName:    fields[5],
			FetchedTS: fetchedTS,
		}, true
	default:
		return model.ASNInfo{}, false
	}
}

func splitPipe(line string) []string {
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}


