package middleware

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

// Field limits matching database schema constraints.
const (
	MaxReasonLen    = 255 // flag reasons are logged, not stored
	MaxRadiusMiles  = 500
	MaxQueryLimit   = 50
	forwardedHeader = "X-Forwarded-For"
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ClientIP returns the caller's address: the first X-Forwarded-For entry
// when the peer is a trusted proxy and the header is present, otherwise the
// peer address. Returns "" when it is not a valid IP.
func ClientIP(c fiber.Ctx) string {
	forwarded := ""
	if c.IsProxyTrusted() {
		forwarded = c.Get(forwardedHeader)
	}
	return ipaddr.FromForwarded(forwarded, c.IP())
}

// ParseID parses a positive integer id from a path or query value.
func ParseID(raw, field string) (int64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, field + " is required"
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, field + " must be a positive integer"
	}
	return id, ""
}

// ParseOptionalID parses an optional positive id. Empty input yields nil.
func ParseOptionalID(raw, field string) (*int64, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, ""
	}
	id, errMsg := ParseID(raw, field)
	if errMsg != "" {
		return nil, errMsg
	}
	return &id, ""
}

// ParseRadius parses an optional radius in miles. Empty input yields 0,
// meaning the configured default.
func ParseRadius(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ""
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r <= 0 || r > MaxRadiusMiles {
		return 0, "radius must be a number between 0 and 500"
	}
	return r, ""
}

// ParseLimit parses an optional result limit, capped at MaxQueryLimit.
func ParseLimit(raw string, fallback int) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, "limit must be a positive integer"
	}
	return min(n, MaxQueryLimit), ""
}

// ValidateReason trims a flag reason and truncates it to MaxReasonLen bytes
// on a rune boundary.
func ValidateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) <= MaxReasonLen {
		return reason
	}
	cut := MaxReasonLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
