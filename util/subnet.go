package util

import (
	"fmt"
	"net"
)

// Subnet truncates an IPv4 dotted-quad to its CIDR network at the given
// prefix length and returns the CIDR string, e.g. Subnet("203.0.113.5", 24)
// -> "203.0.113.0/24". Adapted from activecm-rita's util/subnet.go, which
// supports IPv4-in-IPv6 CIDRs; this is restricted to plain IPv4 per the
// IPv6 non-goal (spec.md §1).
func Subnet(ip string, prefix int) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid IPv4 address: %q", ip)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return "", fmt.Errorf("not an IPv4 address: %q", ip)
	}
	if prefix < 0 || prefix > 32 {
		return "", fmt.Errorf("invalid subnet prefix: %d", prefix)
	}
	mask := net.CIDRMask(prefix, 32)
	network := v4.Mask(mask)
	return fmt.Sprintf("%s/%d", network.String(), prefix), nil
}

// IsValidIPv4 reports whether s parses as an IPv4 address, rejecting
// strings that merely look like a dotted-quad but fail validation
// (invariant 8, spec.md §8), e.g. "999.1.1.1".
func IsValidIPv4(s string) bool {
	parsed := net.ParseIP(s)
	return parsed != nil && parsed.To4() != nil
}
