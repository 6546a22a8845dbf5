package service

import (
	"context"
	"math"
	"time"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

const (
	baseTrust = 0.5

	// Consistency: +0.02 per submission, capped
	consistencyPerSubmission = 0.02
	consistencyMax           = 0.3

	// Age: +0.005 per day since the oldest submission, capped
	agePerDay = 0.005
	ageMax    = 0.2

	// Vote bonus ranges from -0.15 to +0.15
	voteBonusWeight = 0.3

	flaggedPenaltyWeight = 0.4
	suspiciousPenalty    = 0.3

	// Suspicion heuristics over the trailing window
	suspicionWindow          = 24 * time.Hour
	suspiciousVolume         = 50
	singleItemMinSubmissions = 10
	samePriceMinSubmissions  = 5
	flaggedMinSubmissions    = 5
	suspiciousFlaggedRatio   = 0.3
)

// SubmissionHistory is the read side the trust evaluator needs from storage.
type SubmissionHistory interface {
	IPHistory(ctx context.Context, ip string) (model.IPHistory, error)
	RecentActivity(ctx context.Context, ip string, since time.Time) (model.RecentActivity, error)
}

// TrustService estimates how far an anonymous IP address can be trusted from
// its submission and voting history.
type TrustService struct {
	history    SubmissionHistory
	confidence ConfidenceModel
	now        func() time.Time
}

func NewTrustService(history SubmissionHistory) *TrustService {
	return &TrustService{history: history, now: time.Now}
}

// WithClock replaces the time source (tests).
func (s *TrustService) WithClock(now func() time.Time) *TrustService {
	s.now = now
	return s
}

// CalculateTrustScore computes the trust score for ip:
//
//	trust = clamp(0.5 + consistency + age + vote - flagged - suspicious, 0, 1)
//
// Missing IPs score 0.0 and IPs without history score exactly 0.5. On a
// storage error the worst case (0.0) is returned along with the error.
func (s *TrustService) CalculateTrustScore(ctx context.Context, ip string) (float64, error) {
	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		return 0, nil
	}

	h, err := s.history.IPHistory(ctx, ip)
	if err != nil {
		return 0, err
	}
	if h.TotalSubmissions == 0 {
		return baseTrust, nil
	}

	suspicious, err := s.IsIPSuspicious(ctx, ip)
	if err != nil {
		return 0, err
	}
	return s.Score(h, suspicious), nil
}

// Score combines an IP's history into a trust score in [0, 1].
func (s *TrustService) Score(h model.IPHistory, suspicious bool) float64 {
	if h.TotalSubmissions <= 0 {
		return baseTrust
	}

	score := baseTrust +
		s.ConsistencyBonus(h.TotalSubmissions) +
		s.AgeBonus(h.OldestSubmission) +
		s.VoteBonus(h.Upvotes, h.Downvotes) -
		s.FlaggedPenalty(h.FlaggedSubmissions, h.TotalSubmissions)
	if suspicious {
		score -= suspiciousPenalty
	}
	return math.Max(0, math.Min(1, score))
}

// ConsistencyBonus rewards repeat contributors, up to 0.3.
func (s *TrustService) ConsistencyBonus(totalSubmissions int) float64 {
	return math.Min(float64(totalSubmissions)*consistencyPerSubmission, consistencyMax)
}

// AgeBonus rewards long-lived IPs by whole days since the oldest submission,
// up to 0.2.
func (s *TrustService) AgeBonus(oldest *time.Time) float64 {
	if oldest == nil {
		return 0
	}
	days := math.Floor(s.now().Sub(*oldest).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return math.Min(days*agePerDay, ageMax)
}

// VoteBonus maps the positive vote ratio on an IP's prices to [-0.15, 0.15].
// No votes means no bonus.
func (s *TrustService) VoteBonus(upvotes, downvotes int) float64 {
	total := upvotes + downvotes
	if total <= 0 {
		return 0
	}
	ratio := float64(upvotes) / float64(total)
	return (ratio - 0.5) * voteBonusWeight
}

// FlaggedPenalty is the share of flagged submissions scaled to 0.4.
func (s *TrustService) FlaggedPenalty(flagged, total int) float64 {
	return float64(flagged) / float64(max(total, 1)) * flaggedPenaltyWeight
}

// IsIPSuspicious evaluates the abuse heuristics over the trailing 24 hours.
// Missing IPs and storage errors are treated as suspicious.
func (s *TrustService) IsIPSuspicious(ctx context.Context, ip string) (bool, error) {
	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		return true, nil
	}

	activity, err := s.history.RecentActivity(ctx, ip, s.now().Add(-suspicionWindow))
	if err != nil {
		return true, err
	}
	return SuspiciousActivity(activity), nil
}

// SuspiciousActivity applies the heuristics; any one match is suspicious:
//  1. more than 50 submissions
//  2. more than 10 submissions, all for one item
//  3. more than 5 submissions, all with one price value
//  4. more than 5 submissions with over 30% flagged
func SuspiciousActivity(a model.RecentActivity) bool {
	if a.Submissions > suspiciousVolume {
		return true
	}
	if a.Submissions > singleItemMinSubmissions && a.DistinctItems == 1 {
		return true
	}
	if a.Submissions > samePriceMinSubmissions && a.DistinctPrices == 1 {
		return true
	}
	if a.Submissions > flaggedMinSubmissions &&
		float64(a.Flagged)/float64(a.Submissions) > suspiciousFlaggedRatio {
		return true
	}
	return false
}

// RecommendedConfidence gates the requested confidence by the IP's trust.
// Errors yield low confidence.
func (s *TrustService) RecommendedConfidence(ctx context.Context, ip string, requested model.Confidence) (model.Confidence, error) {
	trust, err := s.CalculateTrustScore(ctx, ip)
	if err != nil {
		return model.ConfidenceLow, err
	}
	return s.confidence.Adjust(trust, requested), nil
}

// Assess builds the trust report for ip. IsBlocked is left for the caller.
func (s *TrustService) Assess(ctx context.Context, ip string) (model.TrustAssessment, error) {
	a := model.TrustAssessment{RecommendedConfidence: model.ConfidenceLow}

	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		a.IsSuspicious = true
		return a, nil
	}

	h, err := s.history.IPHistory(ctx, ip)
	if err != nil {
		a.IsSuspicious = true
		return a, err
	}
	recent, err := s.history.RecentActivity(ctx, ip, s.now().Add(-suspicionWindow))
	if err != nil {
		a.IsSuspicious = true
		return a, err
	}

	a.IsSuspicious = SuspiciousActivity(recent)
	a.TrustScore = s.Score(h, a.IsSuspicious)
	a.TotalSubmissions = h.TotalSubmissions
	a.FlaggedSubmissions = h.FlaggedSubmissions
	a.RecentSubmissions = recent.Submissions
	a.RecommendedConfidence = s.confidence.Adjust(a.TrustScore, model.ConfidenceHigh)
	return a, nil
}
