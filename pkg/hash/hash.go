package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// logPrefixLen is the number of hex characters kept for log correlation.
const logPrefixLen = 12

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// IteratedSHA256 applies SHA256 iteratively n times to produce a derived hash.
func IteratedSHA256(input string, iterations int) string {
	data := []byte(input)
	for range iterations {
		h := sha256.Sum256(data)
		data = h[:]
	}
	return hex.EncodeToString(data)
}

// HashIP hashes an IP address with a salt using 5000 iterations of SHA256.
// Used where an IP must be shown (security reports) without revealing it.
func HashIP(ip, salt string) string {
	return IteratedSHA256(salt+ip, 5000)
}

// LogIP returns a short, irreversible prefix of SHA256(ip) for log lines.
// Empty input stays empty so missing addresses remain visible in logs.
func LogIP(ip string) string {
	if ip == "" {
		return ""
	}
	return SHA256Hex(ip)[:logPrefixLen]
}
