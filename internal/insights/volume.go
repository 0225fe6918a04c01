package insights

import (
	"math"
	"time"
)

// Volume guidance recommendations.
const (
	RecommendSendMore = "send_more"
	RecommendSendLess = "send_less"
	RecommendKeep     = "keep_as_is"
)

// VolumeConfig holds the advisor's correlation thresholds.
type VolumeConfig struct {
	MinWeeks       int     // weekly series requires this many complete weeks
	MinMonths      int     // else the monthly series requires this many months
	MinPairs       int     // valid pairs required for any correlation
	StrongAbsCorr  float64 // |r| at or above this maps to score 2
	ModestAbsCorr  float64 // |r| at or above this maps to score 1
}

// DefaultVolumeConfig returns the standard calibration.
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		MinWeeks:      6,
		MinMonths:     3,
		MinPairs:      3,
		StrongAbsCorr: 0.45,
		ModestAbsCorr: 0.20,
	}
}

// VolumeGuidanceResult is the send-volume card: how send volume correlates
// with revenue and the three risk rates, and what to do about it. PeriodType
// is nil when neither the weekly nor the monthly series has enough history.
type VolumeGuidanceResult struct {
	State          string       `json:"state"`
	PeriodType     *Granularity `json:"period_type"`
	Periods        int          `json:"periods"`
	RevenueCorr    *float64     `json:"revenue_correlation"`
	UnsubCorr      *float64     `json:"unsub_correlation"`
	SpamCorr       *float64     `json:"spam_correlation"`
	BounceCorr     *float64     `json:"bounce_correlation"`
	RevenueScore   int          `json:"revenue_score"`
	RiskScore      int          `json:"risk_score"`
	Recommendation string       `json:"recommendation"`
}

// ComputeVolumeGuidance correlates the send-volume series against revenue and
// risk series over weekly buckets (monthly when the weekly history is too
// short) and maps correlation strength to a send-more / send-less / keep
// recommendation.
func ComputeVolumeGuidance(records []SendRecord, boundary time.Time, cfg VolumeConfig) VolumeGuidanceResult {
	result := VolumeGuidanceResult{State: stateInsufficient, Recommendation: RecommendKeep}

	buckets := completeBuckets(AggregateByPeriod(records, GranularityWeek, boundary))
	granularity := GranularityWeek
	if len(buckets) < cfg.MinWeeks {
		monthly := completeBuckets(AggregateByPeriod(records, GranularityMonth, boundary))
		if len(monthly) < cfg.MinMonths {
			return result
		}
		buckets = monthly
		granularity = GranularityMonth
	}

	result.State = stateOK
	result.PeriodType = &granularity
	result.Periods = len(buckets)

	volumes := make([]float64, 0, len(buckets))
	revenues := make([]float64, 0, len(buckets))
	unsubRates := make([]float64, 0, len(buckets))
	spamRates := make([]float64, 0, len(buckets))
	bounceRates := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		if b.TotalEmails == 0 {
			// Rates are undefined on zero-volume periods; skip the pair.
			continue
		}
		emails := float64(b.TotalEmails)
		volumes = append(volumes, emails)
		revenues = append(revenues, b.TotalRevenue)
		unsubRates = append(unsubRates, float64(b.Unsubscribes)/emails)
		spamRates = append(spamRates, float64(b.SpamComplaints)/emails)
		bounceRates = append(bounceRates, float64(b.Bounces)/emails)
	}

	result.RevenueCorr = correlate(volumes, revenues, cfg)
	result.UnsubCorr = correlate(volumes, unsubRates, cfg)
	result.SpamCorr = correlate(volumes, spamRates, cfg)
	result.BounceCorr = correlate(volumes, bounceRates, cfg)

	result.RevenueScore = corrScore(result.RevenueCorr, cfg)
	result.RiskScore = maxRiskScore(cfg, result.UnsubCorr, result.SpamCorr, result.BounceCorr)
	result.Recommendation = recommend(result.RevenueScore, result.RiskScore)
	return result
}

func correlate(xs, ys []float64, cfg VolumeConfig) *float64 {
	if len(xs) < cfg.MinPairs {
		return nil
	}
	r, ok := pearsonCorrelation(xs, ys)
	if !ok {
		return nil
	}
	return &r
}

// corrScore maps correlation strength to a discrete score, preserving sign:
// |r| >= StrongAbsCorr -> ±2, |r| >= ModestAbsCorr -> ±1, else 0.
func corrScore(r *float64, cfg VolumeConfig) int {
	if r == nil {
		return 0
	}
	abs := math.Abs(*r)
	score := 0
	switch {
	case abs >= cfg.StrongAbsCorr:
		score = 2
	case abs >= cfg.ModestAbsCorr:
		score = 1
	}
	if *r < 0 {
		score = -score
	}
	return score
}

// maxRiskScore takes the worst positive (harmful) risk correlation. A
// negative correlation between volume and a risk rate is not penalized.
func maxRiskScore(cfg VolumeConfig, risks ...*float64) int {
	maxScore := 0
	for _, r := range risks {
		if s := corrScore(r, cfg); s > maxScore {
			maxScore = s
		}
	}
	return maxScore
}

func recommend(revenueScore, riskScore int) string {
	switch {
	case revenueScore >= 1 && riskScore <= 0:
		return RecommendSendMore
	case riskScore >= 2, riskScore >= 1 && revenueScore <= 0:
		return RecommendSendLess
	default:
		return RecommendKeep
	}
}
