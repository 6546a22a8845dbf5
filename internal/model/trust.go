package model

import "time"

// IPHistory is the all-time submission aggregate for one IP address.
type IPHistory struct {
	TotalSubmissions   int
	OldestSubmission   *time.Time
	FlaggedSubmissions int // prices with flagged_count > 0
	Upvotes            int // votes on this IP's prices
	Downvotes          int
}

// RecentActivity is the submission aggregate for one IP address over a
// trailing window.
type RecentActivity struct {
	Submissions    int
	DistinctItems  int
	DistinctPrices int
	Flagged        int
}

// TrustAssessment is the derived reputation of an anonymous IP address.
type TrustAssessment struct {
	IPHash                string     `json:"ipHash"`
	TrustScore            float64    `json:"trustScore"`
	IsSuspicious          bool       `json:"isSuspicious"`
	IsBlocked             bool       `json:"isBlocked"`
	TotalSubmissions      int        `json:"totalSubmissions"`
	FlaggedSubmissions    int        `json:"flaggedSubmissions"`
	RecentSubmissions     int        `json:"recentSubmissions"`
	RecommendedConfidence Confidence `json:"recommendedConfidence"`
}

// SubmissionDecision is the admit/reject outcome for an anonymous submission.
type SubmissionDecision struct {
	Blocked    bool
	Reason     string
	RetryAfter time.Duration // set only when rate limited
}

// FlagOutcome tells the caller what happened to a flag request.
type FlagOutcome int

const (
	FlagOutcomeFlagged FlagOutcome = iota
	FlagOutcomeNotFound
)

func (o FlagOutcome) String() string {
	switch o {
	case FlagOutcomeFlagged:
		return "flagged"
	case FlagOutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// FlagResult is returned by the flagging service.
type FlagResult struct {
	Outcome      FlagOutcome `json:"-"`
	PriceID      int64       `json:"priceId"`
	FlaggedCount int         `json:"flaggedCount"`
	IPBlocked    bool        `json:"ipBlocked"`
}

// ItemPriceStats summarizes the price-per-unit distribution of one item.
type ItemPriceStats struct {
	ItemID              int64              `json:"itemId"`
	Count               int                `json:"count"`
	AvgPricePerUnit     *float64           `json:"avgPricePerUnit"`
	MinPricePerUnit     *float64           `json:"minPricePerUnit"`
	MaxPricePerUnit     *float64           `json:"maxPricePerUnit"`
	StdDevPricePerUnit  *float64           `json:"stdDevPricePerUnit"`
	ConfidenceBreakdown map[Confidence]int `json:"confidenceBreakdown"`
}
