package model

import "time"

// Vote represents an individual correctness judgment on a price.
type Vote struct {
	ID             int64     `json:"id"`
	PriceID        int64     `json:"priceId"`
	IsCorrectPrice bool      `json:"isCorrectPrice"`
	IPAddress      *string   `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// VoteRequest is the API request body for voting on a price.
type VoteRequest struct {
	IsCorrectPrice *bool `json:"isCorrectPrice"`
}

// VoteResponse is the API response after casting a vote.
type VoteResponse struct {
	Success   bool  `json:"success"`
	VoteID    int64 `json:"voteId"`
	Upvotes   int   `json:"upvotes"`
	Downvotes int   `json:"downvotes"`
}

// FlagRequest is the API request body for flagging a price.
type FlagRequest struct {
	Reason string `json:"reason,omitempty"`
}
