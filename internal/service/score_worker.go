package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

const (
	DefaultScoreRefreshInterval   = 15 * time.Minute
	DefaultScoreWorkerConcurrency = 4
)

// ScoreStore is the storage the periodic score refresh reads and writes.
type ScoreStore interface {
	ItemIDsWithPrices(ctx context.Context) ([]int64, error)
	ListWithVotes(ctx context.Context, itemID int64) ([]model.PriceWithVotes, error)
	UpdateSmartScores(ctx context.Context, ranked []model.RankedPrice) (int64, error)
}

// ScoreWorker periodically recomputes and persists the smart score of every
// price. Items are independent, so a failed item is logged and skipped.
type ScoreWorker struct {
	store       ScoreStore
	engine      *ScoringEngine
	interval    time.Duration
	concurrency int
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewScoreWorker creates a worker that ticks every interval.
func NewScoreWorker(store ScoreStore, engine *ScoringEngine, interval time.Duration, concurrency int) *ScoreWorker {
	if interval <= 0 {
		interval = DefaultScoreRefreshInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultScoreWorkerConcurrency
	}
	return &ScoreWorker{
		store:       store,
		engine:      engine,
		interval:    interval,
		concurrency: concurrency,
		stopCh:      make(chan struct{}),
	}
}

// Start runs one refresh immediately, then every interval until ctx is
// cancelled or Stop is called.
func (w *ScoreWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("concurrency", w.concurrency).Msg("score-worker: starting")

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			log.Info().Msg("score-worker: stopping (context cancelled)")
			return
		case <-w.stopCh:
			log.Info().Msg("score-worker: stopping (stop signal)")
			return
		}
	}
}

// Stop signals the worker to stop. Safe to call more than once.
func (w *ScoreWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *ScoreWorker) tick(ctx context.Context) {
	start := time.Now()

	items, updated, err := w.RefreshAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("score-worker: refresh failed")
		return
	}

	elapsed := time.Since(start)
	metrics.ScoreRefreshDuration.Observe(elapsed.Seconds())
	log.Info().
		Int("items", items).
		Int64("prices_updated", updated).
		Dur("elapsed", elapsed.Round(time.Millisecond)).
		Msg("score-worker: tick complete")
}

// RefreshAll recomputes smart scores for every item with prices. It returns
// the number of items refreshed and prices updated. Re-running it is safe.
func (w *ScoreWorker) RefreshAll(ctx context.Context) (int, int64, error) {
	itemIDs, err := w.store.ItemIDsWithPrices(ctx)
	if err != nil {
		return 0, 0, err
	}

	var items atomic.Int64
	var updated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, itemID := range itemIDs {
		g.Go(func() error {
			n, err := w.refreshItem(gctx, itemID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Error().Err(err).Int64("item_id", itemID).Msg("score-worker: item refresh failed")
				return nil
			}
			items.Add(1)
			updated.Add(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(items.Load()), updated.Load(), err
	}
	return int(items.Load()), updated.Load(), nil
}

func (w *ScoreWorker) refreshItem(ctx context.Context, itemID int64) (int64, error) {
	prices, err := w.store.ListWithVotes(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return w.store.UpdateSmartScores(ctx, w.engine.Rank(prices, nil))
}
