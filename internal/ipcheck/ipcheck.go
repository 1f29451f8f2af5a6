// Package ipcheck classifies IP addresses and hostnames as public or
// private/reserved. It is pure computation over address bytes with no I/O,
// so callers can use it from both request validation and DNS verification
// paths. A missed range here is an exploitable SSRF hole; every range is
// covered by tests.
package ipcheck

import (
	"net/netip"
	"strings"
)

// ParseAddr parses an IP literal, accepting bracketed IPv6 forms
// ("[::1]") and zone suffixes ("fe80::1%eth0"). Returns false if the
// string is not an IP literal.
func ParseAddr(host string) (netip.Addr, bool) {
	s := strings.TrimSpace(host)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.WithZone(""), true
}

// IsIPLiteral reports whether host is a literal IPv4 or IPv6 address.
func IsIPLiteral(host string) bool {
	_, ok := ParseAddr(host)
	return ok
}

// IsPrivateOrReserved reports whether addr falls in any private, loopback,
// link-local, carrier-grade NAT, benchmarking, multicast, or otherwise
// reserved range. IPv4-mapped IPv6 addresses are unwrapped first, so
// ::ffff:127.0.0.1 and its hextet spelling ::ffff:7f00:1 both classify by
// their embedded IPv4 address.
func IsPrivateOrReserved(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	if addr.Is4() || addr.Is4In6() {
		return isPrivateOrReserved4(addr.Unmap().As4())
	}
	return isPrivateOrReserved6(addr)
}

// HostIsPrivateOrReserved parses host as an IP literal and classifies it.
// The second return is false when host is not an IP literal at all.
func HostIsPrivateOrReserved(host string) (private bool, isIP bool) {
	addr, ok := ParseAddr(host)
	if !ok {
		return false, false
	}
	return IsPrivateOrReserved(addr), true
}

func isPrivateOrReserved4(a [4]byte) bool {
	switch {
	case a[0] == 0: // 0.0.0.0/8 "this network"
		return true
	case a[0] == 10: // 10.0.0.0/8
		return true
	case a[0] == 100 && a[1] >= 64 && a[1] <= 127: // 100.64.0.0/10 CGNAT
		return true
	case a[0] == 127: // 127.0.0.0/8 loopback
		return true
	case a[0] == 169 && a[1] == 254: // 169.254.0.0/16 link-local
		return true
	case a[0] == 172 && a[1] >= 16 && a[1] <= 31: // 172.16.0.0/12
		return true
	case a[0] == 192 && a[1] == 168: // 192.168.0.0/16
		return true
	case a[0] == 198 && (a[1] == 18 || a[1] == 19): // 198.18.0.0/15 benchmarking
		return true
	case a[0] >= 224: // 224.0.0.0/4 multicast through 255.255.255.255
		return true
	}
	return false
}

func isPrivateOrReserved6(addr netip.Addr) bool {
	if addr.IsUnspecified() || addr.IsLoopback() {
		return true // :: and ::1
	}
	b := addr.As16()
	switch {
	case b[0] == 0xfe && b[1]&0xc0 == 0x80: // fe80::/10 link-local
		return true
	case b[0]&0xfe == 0xfc: // fc00::/7 unique-local
		return true
	case b[0] == 0xfe && b[1]&0xc0 == 0xc0: // fec0::/10 site-local (deprecated)
		return true
	case b[0] == 0xff: // ff00::/8 multicast
		return true
	}
	return false
}

// IsDisallowedHostname reports whether host is a name that must never be
// reached regardless of allowlists: "localhost" and anything under the
// ".localhost" TLD.
func IsDisallowedHostname(host string) bool {
	h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	return h == "localhost" || strings.HasSuffix(h, ".localhost")
}
