package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Confidence is the submitter's self-reported certainty about a price.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ErrInvalidConfidence is returned by ParseConfidence for unknown levels.
var ErrInvalidConfidence = errors.New("invalid confidence level")

// ParseConfidence maps a request value to a Confidence. Empty means medium.
func ParseConfidence(s string) (Confidence, error) {
	switch Confidence(s) {
	case "":
		return ConfidenceMedium, nil
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(s), nil
	default:
		return "", ErrInvalidConfidence
	}
}

// PricePlaces is the number of decimal places kept for stored prices.
const PricePlaces = 2

// PriceRecord is a price quoted for an item at a store.
type PriceRecord struct {
	ID            int64           `json:"id"`
	ItemID        int64           `json:"itemId"`
	StoreID       int64           `json:"storeId"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	DatePurchased *time.Time      `json:"datePurchased,omitempty"`
	Confidence    Confidence      `json:"confidence"`
	IPAddress     *string         `json:"-"`
	Verified      bool            `json:"verified"`
	FlaggedCount  int             `json:"flaggedCount"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TruncatePrice drops digits beyond PricePlaces without rounding.
func TruncatePrice(p decimal.Decimal) decimal.Decimal {
	return p.Truncate(PricePlaces)
}

// PricePerUnit divides the price by the quantity. A non-positive quantity
// yields the price itself.
func (p *PriceRecord) PricePerUnit() float64 {
	price := p.Price.InexactFloat64()
	if p.Quantity <= 0 {
		return price
	}
	return p.Price.Div(decimal.NewFromInt(int64(p.Quantity))).InexactFloat64()
}

// VoteTally holds the aggregated correctness votes for one price.
type VoteTally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Total returns upvotes + downvotes.
func (t VoteTally) Total() int {
	return t.Upvotes + t.Downvotes
}

// PriceWithVotes pairs a price with its vote tally, the input to ranking.
type PriceWithVotes struct {
	Price PriceRecord
	Votes VoteTally
}

// RankedPrice is a price annotated with its ranking signals. Computed fresh
// on every ranking request.
type RankedPrice struct {
	PriceRecord
	Upvotes        int      `json:"upvotes"`
	Downvotes      int      `json:"downvotes"`
	VoteConfidence float64  `json:"voteConfidence"`
	PricePerUnit   float64  `json:"pricePerUnit"`
	SmartScore     float64  `json:"smartScore"`
	DistanceMiles  *float64 `json:"distanceMiles,omitempty"`
}

// PriceSubmitRequest is the API request body for submitting a price.
type PriceSubmitRequest struct {
	ItemID        int64  `json:"itemId"`
	StoreID       int64  `json:"storeId"`
	Price         string `json:"price"`
	Quantity      int    `json:"quantity,omitempty"`
	DatePurchased string `json:"datePurchased,omitempty"`
	Confidence    string `json:"confidence,omitempty"`
}

// PriceSubmitResponse is the API response after a price is accepted.
type PriceSubmitResponse struct {
	Success             bool            `json:"success"`
	PriceID             int64           `json:"priceId"`
	Price               decimal.Decimal `json:"price"`
	RequestedConfidence Confidence      `json:"requestedConfidence"`
	Confidence          Confidence      `json:"confidence"`
}

// ItemPricesResponse is the API response for a ranked price listing.
type ItemPricesResponse struct {
	ItemID  int64         `json:"itemId"`
	BaseID  *int64        `json:"baseId,omitempty"`
	Radius  float64       `json:"radiusMiles,omitempty"`
	Prices  []RankedPrice `json:"prices"`
	Ranking string        `json:"ranking"`
}
