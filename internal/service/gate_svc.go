package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/hash"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

const (
	blockedIPPrefix = "blocked_ip:"

	ReasonInvalidIP  = "Invalid IP address"
	ReasonSuspicious = "Suspicious activity detected. Please try again later."
	ReasonBlocked    = "IP address is temporarily blocked."
)

func blocklistKey(ip string) string {
	return blockedIPPrefix + ip
}

// GateConfig holds the rate limit applied to anonymous submissions.
type GateConfig struct {
	Window         time.Duration
	MaxSubmissions int
	IPHashSalt     string
}

// SubmissionGate decides whether an anonymous price submission is admitted.
type SubmissionGate struct {
	limiter *RateLimiter
	trust   *TrustService
	cache   Cache
	cfg     GateConfig
}

func NewSubmissionGate(limiter *RateLimiter, trust *TrustService, cache Cache, cfg GateConfig) *SubmissionGate {
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	if cfg.MaxSubmissions <= 0 {
		cfg.MaxSubmissions = DefaultRateLimitMax
	}
	return &SubmissionGate{limiter: limiter, trust: trust, cache: cache, cfg: cfg}
}

// ShouldBlockSubmission runs the checks in order; the first match wins:
//
//  1. missing or malformed ip
//  2. rate limited
//  3. suspicious activity
//  4. temporarily blocked
//
// An admitted submission counts toward the rate limit.
func (g *SubmissionGate) ShouldBlockSubmission(ctx context.Context, ip string) model.SubmissionDecision {
	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		return model.SubmissionDecision{Blocked: true, Reason: ReasonInvalidIP}
	}

	if limited, reset := g.limiter.IsRateLimited(ctx, ip, g.cfg.Window, g.cfg.MaxSubmissions); limited {
		return model.SubmissionDecision{
			Blocked:    true,
			Reason:     fmt.Sprintf("Rate limit exceeded. Try again in %d minutes.", int(reset.Seconds())/60),
			RetryAfter: reset,
		}
	}

	suspicious, err := g.trust.IsIPSuspicious(ctx, ip)
	if err != nil {
		log.Error().Err(err).Str("ip_hash", hash.LogIP(ip)).Msg("gate: suspicion check failed")
	}
	if suspicious {
		return model.SubmissionDecision{Blocked: true, Reason: ReasonSuspicious}
	}

	if g.IsBlocked(ctx, ip) {
		return model.SubmissionDecision{Blocked: true, Reason: ReasonBlocked}
	}

	return model.SubmissionDecision{}
}

// IsBlocked reports whether ip has an active blocklist entry. Cache errors
// are treated as blocked.
func (g *SubmissionGate) IsBlocked(ctx context.Context, ip string) bool {
	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		return true
	}
	_, found, err := g.cache.Get(ctx, blocklistKey(ip))
	if err != nil {
		log.Error().Err(err).Str("ip_hash", hash.LogIP(ip)).Msg("gate: blocklist read failed")
		return true
	}
	return found
}

// Report builds the security report for ip. The raw address is replaced by
// its salted hash.
func (g *SubmissionGate) Report(ctx context.Context, ip string) (model.TrustAssessment, error) {
	a, err := g.trust.Assess(ctx, ip)
	if normalized, ok := ipaddr.Normalize(ip); ok {
		a.IPHash = hash.HashIP(normalized, g.cfg.IPHashSalt)
	}
	a.IsBlocked = g.IsBlocked(ctx, ip)
	return a, err
}
