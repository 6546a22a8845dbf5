package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/hash"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

const (
	DefaultProximityRadiusMiles = 50.0
	DefaultDistanceCacheTTL     = time.Hour

	DefaultBestPricesLimit = 3
	MaxBestPricesLimit     = 50

	datePurchasedLayout = "2006-01-02"
)

// Prices at or above this do not fit numeric(10,2).
var maxPrice = decimal.New(1, 8)

// PriceStore is the price persistence the submission and listing flows need.
type PriceStore interface {
	Create(ctx context.Context, p *model.PriceRecord) error
	ListWithVotes(ctx context.Context, itemID int64) ([]model.PriceWithVotes, error)
}

// LocationStore resolves bases and store coordinates for proximity ranking.
type LocationStore interface {
	FindBase(ctx context.Context, baseID int64) (*model.Base, error)
	ListLocated(ctx context.Context) ([]model.Store, error)
}

// PriceConfig tunes ranking and caching for PriceService.
type PriceConfig struct {
	ProximityRadiusMiles float64
	DistanceCacheTTL     time.Duration
}

// PriceService handles anonymous price submission and ranked price listings.
type PriceService struct {
	prices PriceStore
	stores LocationStore
	gate   *SubmissionGate
	trust  *TrustService
	engine *ScoringEngine
	stats  *StatsService
	cache  Cache
	cfg    PriceConfig
}

func NewPriceService(
	prices PriceStore,
	stores LocationStore,
	gate *SubmissionGate,
	trust *TrustService,
	engine *ScoringEngine,
	stats *StatsService,
	cache Cache,
	cfg PriceConfig,
) *PriceService {
	if cfg.ProximityRadiusMiles <= 0 {
		cfg.ProximityRadiusMiles = DefaultProximityRadiusMiles
	}
	if cfg.DistanceCacheTTL <= 0 {
		cfg.DistanceCacheTTL = DefaultDistanceCacheTTL
	}
	return &PriceService{
		prices: prices,
		stores: stores,
		gate:   gate,
		trust:  trust,
		engine: engine,
		stats:  stats,
		cache:  cache,
		cfg:    cfg,
	}
}

// Submit validates and gates an anonymous price submission, then stores it
// with trust-adjusted confidence. Rejections are returned as *BlockedError.
func (s *PriceService) Submit(ctx context.Context, req model.PriceSubmitRequest, ip string) (*model.PriceSubmitResponse, error) {
	record, requested, err := parseSubmission(req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	decision := s.gate.ShouldBlockSubmission(ctx, ip)
	if decision.Blocked {
		outcome := "blocked"
		if decision.RetryAfter > 0 {
			outcome = "rate_limited"
		}
		metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
		log.Info().
			Str("ip_hash", hash.LogIP(ip)).
			Str("reason", decision.Reason).
			Msg("price: submission rejected")
		return nil, &BlockedError{Decision: decision}
	}

	// The gate only admits valid addresses
	ip, _ = ipaddr.Normalize(ip)

	granted, err := s.trust.RecommendedConfidence(ctx, ip, requested)
	if err != nil {
		log.Error().Err(err).Str("ip_hash", hash.LogIP(ip)).Msg("price: trust lookup failed, using low confidence")
	}
	record.Confidence = granted
	record.IPAddress = &ip

	if err := s.prices.Create(ctx, record); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	s.stats.Invalidate(ctx, record.ItemID)

	return &model.PriceSubmitResponse{
		Success:             true,
		PriceID:             record.ID,
		Price:               record.Price,
		RequestedConfidence: requested,
		Confidence:          granted,
	}, nil
}

func parseSubmission(req model.PriceSubmitRequest) (*model.PriceRecord, model.Confidence, error) {
	if req.ItemID <= 0 {
		return nil, "", invalid("itemId is required")
	}
	if req.StoreID <= 0 {
		return nil, "", invalid("storeId is required")
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, "", invalid("price must be a decimal number")
	}
	price = model.TruncatePrice(price)
	if !price.IsPositive() {
		return nil, "", invalid("price must be greater than zero")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return nil, "", invalid("price is too large")
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, "", invalid("quantity must be a positive integer")
	}

	requested, err := model.ParseConfidence(req.Confidence)
	if err != nil {
		return nil, "", invalid("confidence must be one of high, medium, low")
	}

	record := &model.PriceRecord{
		ItemID:   req.ItemID,
		StoreID:  req.StoreID,
		Price:    price,
		Quantity: quantity,
	}
	if req.DatePurchased != "" {
		d, err := time.Parse(datePurchasedLayout, req.DatePurchased)
		if err != nil {
			return nil, "", invalid("datePurchased must be YYYY-MM-DD")
		}
		record.DatePurchased = &d
	}
	return record, requested, nil
}

// ListRanked ranks the prices of itemID by smart score. When baseID is set,
// stores within radiusMiles of that base contribute a proximity signal.
func (s *PriceService) ListRanked(ctx context.Context, itemID int64, baseID *int64, radiusMiles float64) (*model.ItemPricesResponse, error) {
	prices, err := s.prices.ListWithVotes(ctx, itemID)
	if err != nil {
		return nil, err
	}

	resp := &model.ItemPricesResponse{ItemID: itemID, Ranking: "standard"}

	var prox *Proximity
	if baseID != nil {
		if radiusMiles <= 0 {
			radiusMiles = s.cfg.ProximityRadiusMiles
		}
		distances, err := s.storeDistances(ctx, *baseID, radiusMiles)
		if err != nil {
			return nil, err
		}
		prox = &Proximity{DistanceMiles: distances, RadiusMiles: radiusMiles}
		resp.BaseID = baseID
		resp.Radius = radiusMiles
		if prox.usable() {
			resp.Ranking = "proximity"
		}
	}

	resp.Prices = s.engine.Rank(prices, prox)
	return resp, nil
}

// BestPrices returns the confidence-weighted cheapest prices for itemID.
func (s *PriceService) BestPrices(ctx context.Context, itemID int64, limit int) ([]model.PriceRecord, error) {
	if limit <= 0 {
		limit = DefaultBestPricesLimit
	}
	limit = min(limit, MaxBestPricesLimit)

	prices, err := s.prices.ListWithVotes(ctx, itemID)
	if err != nil {
		return nil, err
	}

	records := make([]model.PriceRecord, len(prices))
	for i, pv := range prices {
		records[i] = pv.Price
	}
	return s.engine.BestPrices(records, limit), nil
}

func distancesKey(baseID int64, radiusMiles float64) string {
	return fmt.Sprintf("store_distances:%d:%g", baseID, radiusMiles)
}

// storeDistances returns the store distances from a base, cached per base
// and radius.
func (s *PriceService) storeDistances(ctx context.Context, baseID int64, radiusMiles float64) (map[int64]float64, error) {
	key := distancesKey(baseID, radiusMiles)

	var cached map[int64]float64
	if getJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	base, err := s.stores.FindBase(ctx, baseID)
	if err != nil {
		return nil, err
	}
	stores, err := s.stores.ListLocated(ctx)
	if err != nil {
		return nil, err
	}

	distances := StoreDistances(base, stores, radiusMiles)
	if distances == nil {
		distances = map[int64]float64{}
	}
	setJSON(ctx, s.cache, key, distances, s.cfg.DistanceCacheTTL)
	return distances, nil
}
