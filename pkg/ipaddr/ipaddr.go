// Package ipaddr validates and normalizes client IP addresses.
package ipaddr

import (
	"net/netip"
	"strings"
)

// Normalize parses ip and returns its canonical text form. The second return
// is false for empty or malformed input.
func Normalize(ip string) (string, bool) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// FromForwarded picks the client address: the first X-Forwarded-For entry
// when present, otherwise remote. Returns "" when the chosen value is invalid.
func FromForwarded(forwardedFor, remote string) string {
	candidate := remote
	if forwardedFor != "" {
		candidate, _, _ = strings.Cut(forwardedFor, ",")
	}
	ip, ok := Normalize(candidate)
	if !ok {
		return ""
	}
	return ip
}
