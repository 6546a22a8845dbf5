package service

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

// Smart score weights
const (
	// Expected typical item price; price-per-unit is normalized against it
	typicalItemPrice = 50.0

	priceWeight = 0.7
	voteWeight  = 0.3

	proximityPriceWeight = 0.6
	proximityVoteWeight  = 0.25
	proximityWeight      = 0.15

	// Used for stores without a known distance
	neutralProximity = 0.5
)

// Proximity carries the distance signal for proximity-aware ranking.
type Proximity struct {
	DistanceMiles map[int64]float64 // by store id
	RadiusMiles   float64
}

func (p *Proximity) usable() bool {
	return p != nil && len(p.DistanceMiles) > 0 && p.RadiusMiles > 0
}

// ScoringEngine ranks competing prices for one item.
type ScoringEngine struct {
	confidence ConfidenceModel
}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

// VoteConfidence is the net vote ratio in [-1, 1], 0 without votes.
func (e *ScoringEngine) VoteConfidence(t model.VoteTally) float64 {
	return float64(t.Upvotes-t.Downvotes) / float64(max(t.Total(), 1))
}

// SmartScore combines the price, vote and optional proximity signals:
//
//	price_score = 1 - ppu/50
//	vote_score  = (vote_confidence + 1) / 2
//	without proximity: 0.7*price_score + 0.3*vote_score
//	with proximity:    0.6*price_score + 0.25*vote_score + 0.15*proximity_score
//
// price_score is not clamped, so prices above 50 per unit score negatively.
func (e *ScoringEngine) SmartScore(pricePerUnit, voteConfidence float64, proximity *float64) float64 {
	priceScore := 1 - pricePerUnit/typicalItemPrice
	voteScore := (voteConfidence + 1) / 2

	if proximity == nil {
		return priceWeight*priceScore + voteWeight*voteScore
	}
	return proximityPriceWeight*priceScore + proximityVoteWeight*voteScore + proximityWeight*(*proximity)
}

// ProximityScore maps a distance to [0, 1] within radius.
func (e *ScoringEngine) ProximityScore(distanceMiles, radiusMiles float64) float64 {
	if radiusMiles <= 0 {
		return 0
	}
	return math.Max(0, 1-distanceMiles/radiusMiles)
}

// Rank scores every price and orders them best first. Proximity is used only
// when prox has distances and a positive radius. Ties fall back to lower
// price-per-unit, then more votes, then lower id.
func (e *ScoringEngine) Rank(prices []model.PriceWithVotes, prox *Proximity) []model.RankedPrice {
	start := time.Now()
	defer func() { metrics.RankingDuration.Observe(time.Since(start).Seconds()) }()

	useProximity := prox.usable()
	ranked := make([]model.RankedPrice, 0, len(prices))

	for _, pv := range prices {
		rp := model.RankedPrice{
			PriceRecord:    pv.Price,
			Upvotes:        pv.Votes.Upvotes,
			Downvotes:      pv.Votes.Downvotes,
			VoteConfidence: e.VoteConfidence(pv.Votes),
			PricePerUnit:   pv.Price.PricePerUnit(),
		}

		var proximity *float64
		if useProximity {
			score := neutralProximity
			if d, ok := prox.DistanceMiles[pv.Price.StoreID]; ok {
				score = e.ProximityScore(d, prox.RadiusMiles)
				rp.DistanceMiles = &d
			}
			proximity = &score
		}

		rp.SmartScore = e.SmartScore(rp.PricePerUnit, rp.VoteConfidence, proximity)
		ranked = append(ranked, rp)
	}

	slices.SortFunc(ranked, compareRanked)
	return ranked
}

func compareRanked(a, b model.RankedPrice) int {
	if c := cmp.Compare(b.SmartScore, a.SmartScore); c != 0 {
		return c
	}
	if c := cmp.Compare(a.PricePerUnit, b.PricePerUnit); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Upvotes+b.Downvotes, a.Upvotes+a.Downvotes); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// BestPrices returns up to limit prices ordered by price divided by the
// confidence divisor, cheapest first. Ties fall back to lower id.
func (e *ScoringEngine) BestPrices(prices []model.PriceRecord, limit int) []model.PriceRecord {
	best := slices.Clone(prices)
	weighted := func(p model.PriceRecord) float64 {
		return p.Price.InexactFloat64() / e.confidence.Weight(p.Confidence)
	}

	slices.SortFunc(best, func(a, b model.PriceRecord) int {
		if c := cmp.Compare(weighted(a), weighted(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(best) > limit {
		best = best[:limit]
	}
	return best
}
