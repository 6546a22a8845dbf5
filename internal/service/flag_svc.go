package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/internal/repository"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/hash"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

const (
	DefaultFlagBlockThreshold = 3
	DefaultIPBlockTTL         = time.Hour
)

// FlagStore persists flag counts. IncrementFlaggedCount returns the new
// count and the submitter ip, or repository.ErrNotFound.
type FlagStore interface {
	IncrementFlaggedCount(ctx context.Context, priceID int64) (int, *string, error)
}

// FlagService records flags against prices and escalates repeat offenders to
// a temporary IP block.
type FlagService struct {
	store     FlagStore
	cache     Cache
	threshold int
	blockTTL  time.Duration
}

func NewFlagService(store FlagStore, cache Cache, threshold int, blockTTL time.Duration) *FlagService {
	if threshold <= 0 {
		threshold = DefaultFlagBlockThreshold
	}
	if blockTTL <= 0 {
		blockTTL = DefaultIPBlockTTL
	}
	return &FlagService{store: store, cache: cache, threshold: threshold, blockTTL: blockTTL}
}

// FlagPriceAsSuspicious increments the price's flag count. Once the count
// reaches the threshold the submitter ip is blocked for blockTTL. Unknown
// prices yield FlagOutcomeNotFound and no error.
func (s *FlagService) FlagPriceAsSuspicious(ctx context.Context, priceID int64, reason string) (model.FlagResult, error) {
	result := model.FlagResult{PriceID: priceID}

	count, ip, err := s.store.IncrementFlaggedCount(ctx, priceID)
	if errors.Is(err, repository.ErrNotFound) {
		result.Outcome = model.FlagOutcomeNotFound
		metrics.FlagsTotal.WithLabelValues(result.Outcome.String()).Inc()
		return result, nil
	}
	if err != nil {
		return result, err
	}

	result.Outcome = model.FlagOutcomeFlagged
	result.FlaggedCount = count
	metrics.FlagsTotal.WithLabelValues(result.Outcome.String()).Inc()

	log.Info().
		Int64("price_id", priceID).
		Int("flagged_count", count).
		Str("reason", reason).
		Msg("flag: price flagged")

	if count < s.threshold || ip == nil {
		return result, nil
	}
	normalized, ok := ipaddr.Normalize(*ip)
	if !ok {
		return result, nil
	}

	if err := s.cache.Set(ctx, blocklistKey(normalized), "1", s.blockTTL); err != nil {
		return result, err
	}
	result.IPBlocked = true
	metrics.IPBlocksTotal.Inc()

	log.Warn().
		Str("ip_hash", hash.LogIP(normalized)).
		Int64("price_id", priceID).
		Dur("ttl", s.blockTTL).
		Msg("flag: ip temporarily blocked")

	return result, nil
}
