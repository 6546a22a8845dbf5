package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

const DefaultStatsCacheTTL = 30 * time.Minute

// StatsStore computes item price statistics from storage.
type StatsStore interface {
	ItemStats(ctx context.Context, itemID int64) (*model.ItemPriceStats, error)
}

// StatsService serves cached per-item price statistics.
type StatsService struct {
	store StatsStore
	cache Cache
	ttl   time.Duration
}

func NewStatsService(store StatsStore, cache Cache, ttl time.Duration) *StatsService {
	if ttl <= 0 {
		ttl = DefaultStatsCacheTTL
	}
	return &StatsService{store: store, cache: cache, ttl: ttl}
}

func statsKey(itemID int64) string {
	return fmt.Sprintf("item_price_stats:%d", itemID)
}

// ItemStats returns the statistics for itemID, from cache when available.
func (s *StatsService) ItemStats(ctx context.Context, itemID int64) (*model.ItemPriceStats, error) {
	var cached model.ItemPriceStats
	if getJSON(ctx, s.cache, statsKey(itemID), &cached) {
		return &cached, nil
	}

	stats, err := s.store.ItemStats(ctx, itemID)
	if err != nil {
		return nil, err
	}
	setJSON(ctx, s.cache, statsKey(itemID), stats, s.ttl)
	return stats, nil
}

// Invalidate drops the cached statistics for itemID.
func (s *StatsService) Invalidate(ctx context.Context, itemID int64) {
	if err := s.cache.Delete(ctx, statsKey(itemID)); err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("stats: cache invalidate failed")
	}
}
