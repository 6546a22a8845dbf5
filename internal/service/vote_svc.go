package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/hash"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

const (
	DefaultVoteRateLimitMax = 30

	ReasonTooManyVotes = "Too many votes. Please slow down."
)

// VoteStore persists votes. Create returns repository.ErrNotFound when the
// price does not exist.
type VoteStore interface {
	Create(ctx context.Context, priceID int64, isCorrect bool, ip *string) (int64, error)
	Tally(ctx context.Context, priceID int64) (model.VoteTally, error)
}

type VoteService struct {
	repo    VoteStore
	limiter *RateLimiter
	window  time.Duration
	max     int
}

func NewVoteService(repo VoteStore, limiter *RateLimiter, window time.Duration, maxVotes int) *VoteService {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if maxVotes <= 0 {
		maxVotes = DefaultVoteRateLimitMax
	}
	return &VoteService{repo: repo, limiter: limiter, window: window, max: maxVotes}
}

// Cast records a correctness vote on a price and returns the new tally.
func (s *VoteService) Cast(ctx context.Context, priceID int64, req model.VoteRequest, ip string) (*model.VoteResponse, error) {
	if req.IsCorrectPrice == nil {
		return nil, invalid("isCorrectPrice is required")
	}

	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		return nil, &BlockedError{Decision: model.SubmissionDecision{Blocked: true, Reason: ReasonInvalidIP}}
	}

	if limited, reset := s.limiter.IsRateLimited(ctx, ip, s.window, s.max); limited {
		return nil, &BlockedError{Decision: model.SubmissionDecision{
			Blocked:    true,
			Reason:     ReasonTooManyVotes,
			RetryAfter: reset,
		}}
	}

	voteID, err := s.repo.Create(ctx, priceID, *req.IsCorrectPrice, &ip)
	if err != nil {
		return nil, err
	}

	direction := "down"
	if *req.IsCorrectPrice {
		direction = "up"
	}
	metrics.VotesTotal.WithLabelValues(direction).Inc()

	tally, err := s.repo.Tally(ctx, priceID)
	if err != nil {
		// The vote is stored; report it without the refreshed tally
		log.Warn().Err(err).Int64("price_id", priceID).Msg("vote: tally failed")
	}

	log.Debug().
		Int64("price_id", priceID).
		Str("direction", direction).
		Str("ip_hash", hash.LogIP(ip)).
		Msg("vote: recorded")

	return &model.VoteResponse{
		Success:   true,
		VoteID:    voteID,
		Upvotes:   tally.Upvotes,
		Downvotes: tally.Downvotes,
	}, nil
}
