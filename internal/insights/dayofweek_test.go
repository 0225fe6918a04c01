package insights

import (
	"testing"
	"time"
)

// dowRecord places a campaign on the given weekday (0=Monday) of week n,
// counting from Monday 2025-06-02.
func dowRecord(week, weekday int, rec SendRecord) SendRecord {
	rec.SentDate = date(2025, 6, 2).AddDate(0, 0, 7*week+weekday)
	rec.Channel = ChannelCampaign
	return rec
}

func TestDayOfWeekNotEnoughWeeks(t *testing.T) {
	// Exactly three Monday-aligned weeks: one short of the minimum.
	var records []SendRecord
	for week := 0; week < 3; week++ {
		records = append(records, dowRecord(week, 0, SendRecord{EmailsSent: 1000, Revenue: 100}))
	}
	records = append(records, dowRecord(2, 6, SendRecord{EmailsSent: 1000, Revenue: 100}))

	result := ComputeCampaignDayPerformance(records, 0, DefaultDayOfWeekConfig())
	if result.State != stateNotEnoughData {
		t.Errorf("state = %q, want %q", result.State, stateNotEnoughData)
	}
	if result.FullWeeks != 3 {
		t.Errorf("full weeks = %d, want 3", result.FullWeeks)
	}
	if len(result.RecommendedDays) != 0 {
		t.Errorf("no recommendation expected, got %v", result.RecommendedDays)
	}
}

func TestDayOfWeekRecommendsStrongestDay(t *testing.T) {
	var records []SendRecord
	for week := 0; week < 8; week++ {
		// Tuesdays earn well, Thursdays do not.
		records = append(records, dowRecord(week, 1, SendRecord{EmailsSent: 1000, UniqueOpens: 100, Revenue: 200}))
		records = append(records, dowRecord(week, 3, SendRecord{EmailsSent: 1000, UniqueOpens: 50, Revenue: 50}))
	}

	result := ComputeCampaignDayPerformance(records, 1, DefaultDayOfWeekConfig())
	if result.State != stateOK {
		t.Fatalf("state = %q, want %q (full weeks = %d)", result.State, stateOK, result.FullWeeks)
	}
	if len(result.RecommendedDays) != 1 || result.RecommendedDays[0] != "Tuesday" {
		t.Errorf("recommended = %v, want [Tuesday]", result.RecommendedDays)
	}

	tue, thu := result.Days[1], result.Days[3]
	if !tue.Eligible || !thu.Eligible {
		t.Error("both sending days should be eligible")
	}
	if tue.Composite <= thu.Composite {
		t.Errorf("tuesday composite %v must beat thursday %v", tue.Composite, thu.Composite)
	}
	if mon := result.Days[0]; mon.Eligible {
		t.Error("a day with no campaigns must not be eligible")
	}
}

func TestDayOfWeekBandHoldsWithoutExclusions(t *testing.T) {
	// Two requested days, but the runner-up sits far below the inclusion
	// band and nothing is risk-blocked: the pick must stay at one day, not
	// backfill with a weak one.
	var records []SendRecord
	for week := 0; week < 8; week++ {
		records = append(records, dowRecord(week, 1, SendRecord{EmailsSent: 1000, UniqueOpens: 100, Revenue: 200}))
		records = append(records, dowRecord(week, 3, SendRecord{EmailsSent: 1000, UniqueOpens: 50, Revenue: 50}))
	}

	result := ComputeCampaignDayPerformance(records, 2, DefaultDayOfWeekConfig())
	if result.State != stateOK {
		t.Fatalf("state = %q, want %q", result.State, stateOK)
	}
	if len(result.RecommendedDays) != 1 || result.RecommendedDays[0] != "Tuesday" {
		t.Errorf("recommended = %v, want [Tuesday] only", result.RecommendedDays)
	}
	if result.Days[3].Excluded {
		t.Error("thursday is below the band, not risk-excluded")
	}
}

func TestDayOfWeekRiskBlockedDayIsSubstituted(t *testing.T) {
	var records []SendRecord
	for week := 0; week < 8; week++ {
		// Tuesday earns the most but its spam rate is past the block line.
		records = append(records, dowRecord(week, 1, SendRecord{EmailsSent: 1000, UniqueOpens: 100, Revenue: 300, SpamComplaints: 5}))
		records = append(records, dowRecord(week, 3, SendRecord{EmailsSent: 1000, UniqueOpens: 80, Revenue: 100}))
	}

	result := ComputeCampaignDayPerformance(records, 1, DefaultDayOfWeekConfig())
	if result.State != stateOK {
		t.Fatalf("state = %q, want %q", result.State, stateOK)
	}
	if len(result.RecommendedDays) != 1 || result.RecommendedDays[0] != "Thursday" {
		t.Errorf("recommended = %v, want [Thursday] after blocking Tuesday", result.RecommendedDays)
	}
	if !result.Days[1].Excluded {
		t.Error("blocked tuesday must be marked excluded")
	}
}

func TestDayOfWeekEvenPerformance(t *testing.T) {
	var records []SendRecord
	for week := 0; week < 8; week++ {
		records = append(records, dowRecord(week, 1, SendRecord{EmailsSent: 1000, UniqueOpens: 100, Revenue: 100}))
		records = append(records, dowRecord(week, 3, SendRecord{EmailsSent: 1000, UniqueOpens: 100, Revenue: 100}))
	}

	result := ComputeCampaignDayPerformance(records, 1, DefaultDayOfWeekConfig())
	if result.State != "even_performance" {
		t.Errorf("state = %q, want even_performance", result.State)
	}
	if len(result.RecommendedDays) != 0 {
		t.Errorf("no picks expected for an even spread, got %v", result.RecommendedDays)
	}
}

func TestSpikeDominatedDay(t *testing.T) {
	cfg := DefaultDayOfWeekConfig()
	friday := []SendRecord{
		dowRecord(0, 4, SendRecord{EmailsSent: 6000, Revenue: 5000}),
		dowRecord(1, 4, SendRecord{EmailsSent: 1000, Revenue: 100}),
	}
	d := &DowAggregate{Day: 4, Emails: 7000}
	if !spikeDominatedDay(d, friday, cfg) {
		t.Error("60%+ volume at 50x revenue must register as a spike")
	}

	balanced := []SendRecord{
		dowRecord(0, 4, SendRecord{EmailsSent: 4000, Revenue: 500}),
		dowRecord(1, 4, SendRecord{EmailsSent: 3000, Revenue: 400}),
	}
	if spikeDominatedDay(d, balanced, cfg) {
		t.Error("balanced campaigns must not register as a spike")
	}
}

func TestCountFullWeeks(t *testing.T) {
	tests := []struct {
		name     string
		earliest time.Time
		latest   time.Time
		want     int
	}{
		{"mon through sun", date(2025, 6, 2), date(2025, 6, 22), 3},
		{"partial edges trimmed", date(2025, 6, 4), date(2025, 6, 24), 2},
		{"under a week", date(2025, 6, 4), date(2025, 6, 6), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []SendRecord{{SentDate: tt.earliest}, {SentDate: tt.latest}}
			if got := countFullWeeks(records); got != tt.want {
				t.Errorf("countFullWeeks = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInferFrequency(t *testing.T) {
	tests := []struct {
		campaigns, weeks, want int
	}{
		{16, 8, 2},
		{8, 8, 1},
		{2, 8, 1}, // rounds to zero, floored at one
		{30, 8, 4},
		{5, 0, 1},
	}
	for _, tt := range tests {
		if got := inferFrequency(tt.campaigns, tt.weeks); got != tt.want {
			t.Errorf("inferFrequency(%d, %d) = %d, want %d", tt.campaigns, tt.weeks, got, tt.want)
		}
	}
}
