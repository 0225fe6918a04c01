package insights

import (
	"testing"
)

func TestVolumeGuidanceInsufficientHistory(t *testing.T) {
	records := []SendRecord{
		campaignRecord(date(2025, 6, 3), 1000, 100),
		campaignRecord(date(2025, 6, 10), 1000, 100),
	}
	result := ComputeVolumeGuidance(records, date(2025, 6, 16), DefaultVolumeConfig())

	if result.State != stateInsufficient {
		t.Errorf("state = %q, want %q", result.State, stateInsufficient)
	}
	if result.PeriodType != nil {
		t.Errorf("period type = %v, want nil", *result.PeriodType)
	}
	if result.Recommendation != RecommendKeep {
		t.Errorf("recommendation = %q, want %q", result.Recommendation, RecommendKeep)
	}
}

func TestVolumeGuidanceSendMore(t *testing.T) {
	// Volume and revenue climb together; risk rates stay flat.
	var records []SendRecord
	start := date(2025, 1, 6)
	for i := 1; i <= 8; i++ {
		records = append(records, SendRecord{
			SentDate:     start.AddDate(0, 0, 7*(i-1)+2),
			Channel:      ChannelCampaign,
			EmailsSent:   1000 * i,
			Revenue:      float64(100 * i),
			Unsubscribes: i, // constant 0.1% rate
		})
	}
	result := ComputeVolumeGuidance(records, start.AddDate(0, 0, 8*7), DefaultVolumeConfig())

	if result.State != stateOK {
		t.Fatalf("state = %q, want %q", result.State, stateOK)
	}
	if result.PeriodType == nil || *result.PeriodType != GranularityWeek {
		t.Fatalf("period type = %v, want week", result.PeriodType)
	}
	if result.RevenueCorr == nil || *result.RevenueCorr < 0.99 {
		t.Errorf("revenue correlation = %v, want ~1", result.RevenueCorr)
	}
	if result.RevenueScore != 2 {
		t.Errorf("revenue score = %d, want 2", result.RevenueScore)
	}
	if result.UnsubCorr != nil {
		t.Errorf("flat unsub rate must yield nil correlation, got %v", *result.UnsubCorr)
	}
	if result.RiskScore != 0 {
		t.Errorf("risk score = %d, want 0", result.RiskScore)
	}
	if result.Recommendation != RecommendSendMore {
		t.Errorf("recommendation = %q, want %q", result.Recommendation, RecommendSendMore)
	}
}

func TestVolumeGuidanceSendLess(t *testing.T) {
	// Revenue is flat while the spam rate climbs with volume.
	var records []SendRecord
	start := date(2025, 1, 6)
	for i := 1; i <= 8; i++ {
		records = append(records, SendRecord{
			SentDate:       start.AddDate(0, 0, 7*(i-1)+2),
			Channel:        ChannelCampaign,
			EmailsSent:     1000 * i,
			Revenue:        100,
			SpamComplaints: i * i, // rate grows linearly with volume
		})
	}
	result := ComputeVolumeGuidance(records, start.AddDate(0, 0, 8*7), DefaultVolumeConfig())

	if result.State != stateOK {
		t.Fatalf("state = %q, want %q", result.State, stateOK)
	}
	if result.SpamCorr == nil || *result.SpamCorr < 0.99 {
		t.Errorf("spam correlation = %v, want ~1", result.SpamCorr)
	}
	if result.RiskScore != 2 {
		t.Errorf("risk score = %d, want 2", result.RiskScore)
	}
	if result.Recommendation != RecommendSendLess {
		t.Errorf("recommendation = %q, want %q", result.Recommendation, RecommendSendLess)
	}
}

func TestVolumeGuidanceMonthlyFallback(t *testing.T) {
	// Under six weeks of history, but three complete calendar months.
	records := []SendRecord{
		campaignRecord(date(2025, 1, 29), 1000, 100),
		campaignRecord(date(2025, 2, 10), 2000, 220),
		campaignRecord(date(2025, 2, 20), 1500, 140),
		campaignRecord(date(2025, 3, 1), 3000, 310),
	}
	result := ComputeVolumeGuidance(records, date(2025, 4, 1), DefaultVolumeConfig())

	if result.State != stateOK {
		t.Fatalf("state = %q, want %q", result.State, stateOK)
	}
	if result.PeriodType == nil || *result.PeriodType != GranularityMonth {
		t.Fatalf("period type = %v, want month", result.PeriodType)
	}
	if result.Periods != 3 {
		t.Errorf("periods = %d, want 3", result.Periods)
	}
}

func TestCorrScoreSignPreserving(t *testing.T) {
	cfg := DefaultVolumeConfig()
	tests := []struct {
		r    float64
		want int
	}{
		{0.9, 2},
		{0.45, 2},
		{0.3, 1},
		{0.1, 0},
		{-0.3, -1},
		{-0.6, -2},
	}
	for _, tt := range tests {
		r := tt.r
		if got := corrScore(&r, cfg); got != tt.want {
			t.Errorf("corrScore(%v) = %d, want %d", tt.r, got, tt.want)
		}
	}
	if got := corrScore(nil, cfg); got != 0 {
		t.Errorf("corrScore(nil) = %d, want 0", got)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		revenue, risk int
		want          string
	}{
		{2, 0, RecommendSendMore},
		{1, -1, RecommendSendMore},
		{2, 2, RecommendSendLess},
		{0, 1, RecommendSendLess},
		{2, 1, RecommendKeep},
		{0, 0, RecommendKeep},
		{-1, 0, RecommendKeep},
	}
	for _, tt := range tests {
		if got := recommend(tt.revenue, tt.risk); got != tt.want {
			t.Errorf("recommend(%d, %d) = %q, want %q", tt.revenue, tt.risk, got, tt.want)
		}
	}
}
