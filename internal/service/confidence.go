package service

import "github.com/mathieu-neron/packprice/packprice-go/internal/model"

// Trust thresholds for confidence gating
const (
	trustKeepsRequested = 0.8
	trustAllowsMedium   = 0.6
)

// ConfidenceModel maps confidence levels to best-price divisors and gates
// requested confidence by trust. The zero value is ready to use.
type ConfidenceModel struct{}

// Weight returns the divisor applied to a price of confidence c by the
// best-price shortlist. Unknown levels weigh as medium.
func (ConfidenceModel) Weight(c model.Confidence) float64 {
	switch c {
	case model.ConfidenceHigh:
		return 1.0
	case model.ConfidenceLow:
		return 1.2
	default:
		return 1.1
	}
}

// Adjust returns the confidence actually granted to a submission:
//
//	trust >= 0.8  -> requested
//	trust >= 0.6  -> requested, high capped to medium
//	otherwise     -> low
func (ConfidenceModel) Adjust(trust float64, requested model.Confidence) model.Confidence {
	switch {
	case trust >= trustKeepsRequested:
		return requested
	case trust >= trustAllowsMedium:
		if requested == model.ConfidenceHigh {
			return model.ConfidenceMedium
		}
		return requested
	default:
		return model.ConfidenceLow
	}
}
