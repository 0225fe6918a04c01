package insights

import (
	"math"
	"sort"
	"time"
)

// DayOfWeekConfig holds the recommender's calibration constants.
type DayOfWeekConfig struct {
	MinFullWeeks        int     // Monday-aligned full weeks required in range
	MinCampaignsPerDay  int     // eligibility: campaigns on the day, or ...
	MinVolumeShare      float64 // ... share of total email volume
	SpikeVolumeShare    float64 // single campaign share of a day's volume that triggers dampening
	SpikeRevenueRatio   float64 // vs the next-largest campaign's revenue
	SpikeDampening      float64 // multiplier applied to the revenue index
	RiskPenaltyCap      float64 // a bad day can cost at most this much risk index
	EvenSpreadFloor     float64 // composite max-min below this means "don't change cadence"
	WeightRevenue       float64
	WeightEngagement    float64
	WeightRisk          float64
	MaxRecommendedDays  int
	SpamBlockRate       float64 // absolute spam rate that excludes a day outright
	UnsubExcessAbsolute float64 // unsub rate above baseline + this excludes a day
}

// DefaultDayOfWeekConfig returns the standard calibration.
func DefaultDayOfWeekConfig() DayOfWeekConfig {
	return DayOfWeekConfig{
		MinFullWeeks:        4,
		MinCampaignsPerDay:  3,
		MinVolumeShare:      0.02,
		SpikeVolumeShare:    0.60,
		SpikeRevenueRatio:   2.5,
		SpikeDampening:      0.70,
		RiskPenaltyCap:      0.40,
		EvenSpreadFloor:     0.06,
		WeightRevenue:       0.55,
		WeightEngagement:    0.25,
		WeightRisk:          0.20,
		MaxRecommendedDays:  4,
		SpamBlockRate:       0.003,
		UnsubExcessAbsolute: 0.0015, // 0.15 percentage points
	}
}

// inclusionRatios[n-1] is the share of the top composite a day must reach to
// be recommended when n days are requested.
var inclusionRatios = [4]float64{1.00, 0.92, 0.90, 0.88}

// DowAggregate is one weekday's accumulated performance and derived indices.
type DowAggregate struct {
	Day             int     `json:"day"` // 0=Monday ... 6=Sunday
	DayName         string  `json:"day_name"`
	Campaigns       int     `json:"campaigns"`
	Emails          int     `json:"emails"`
	Opens           int     `json:"opens"`
	Clicks          int     `json:"clicks"`
	Orders          int     `json:"orders"`
	Unsubscribes    int     `json:"unsubscribes"`
	SpamComplaints  int     `json:"spam_complaints"`
	Revenue         float64 `json:"revenue"`
	Eligible        bool    `json:"eligible"`
	Excluded        bool    `json:"excluded"` // risk-blocked despite eligibility
	RevenueIndex    float64 `json:"revenue_index"`
	EngagementIndex float64 `json:"engagement_index"`
	RiskIndex       float64 `json:"risk_index"`
	Composite       float64 `json:"composite"`
}

// DayRecommendation is the day-of-week card.
type DayRecommendation struct {
	State           string         `json:"state"` // "ok", "not_enough_data", "even_performance"
	FullWeeks       int            `json:"full_weeks"`
	Frequency       int            `json:"frequency"` // sends per week the pick is sized for
	Days            []DowAggregate `json:"days"`
	RecommendedDays []string       `json:"recommended_days"`
}

var dowNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ComputeCampaignDayPerformance scores each weekday on revenue, engagement,
// and risk relative to the weighted baseline and recommends the top days for
// the requested send frequency. frequency <= 0 infers it from the observed
// cadence.
func ComputeCampaignDayPerformance(records []SendRecord, frequency int, cfg DayOfWeekConfig) DayRecommendation {
	campaigns := make([]SendRecord, 0, len(records))
	for _, r := range records {
		if r.Channel != ChannelFlow {
			campaigns = append(campaigns, r)
		}
	}

	result := DayRecommendation{State: stateNotEnoughData}
	if len(campaigns) == 0 {
		return result
	}

	fullWeeks := countFullWeeks(campaigns)
	result.FullWeeks = fullWeeks
	if fullWeeks < cfg.MinFullWeeks {
		return result
	}

	days, baseline := aggregateByWeekday(campaigns)
	totalEmails := baseline.emails
	if totalEmails == 0 {
		return result
	}

	for i := range days {
		d := &days[i]
		d.Eligible = d.Campaigns >= cfg.MinCampaignsPerDay ||
			float64(d.Emails) >= cfg.MinVolumeShare*float64(totalEmails)
		if !d.Eligible || d.Emails == 0 {
			continue
		}
		d.RevenueIndex = revenueIndex(d, baseline, campaigns, cfg)
		d.EngagementIndex = engagementIndex(d, baseline)
		d.RiskIndex = riskIndex(d, baseline, cfg)
		d.Composite = cfg.WeightRevenue*d.RevenueIndex +
			cfg.WeightEngagement*d.EngagementIndex +
			cfg.WeightRisk*d.RiskIndex
	}
	result.Days = days

	eligible := eligibleDays(days)
	if len(eligible) == 0 {
		return result
	}

	minC, maxC := math.Inf(1), math.Inf(-1)
	for _, d := range eligible {
		minC = math.Min(minC, d.Composite)
		maxC = math.Max(maxC, d.Composite)
	}
	if maxC-minC < cfg.EvenSpreadFloor {
		result.State = "even_performance"
		return result
	}

	if frequency <= 0 {
		frequency = inferFrequency(len(campaigns), fullWeeks)
	}
	if frequency > cfg.MaxRecommendedDays {
		frequency = cfg.MaxRecommendedDays
	}
	result.Frequency = frequency
	result.RecommendedDays = pickDays(days, eligible, frequency, baseline, cfg)
	result.State = stateOK
	return result
}

// countFullWeeks counts Monday-aligned weeks fully contained between the
// earliest and latest campaign dates.
func countFullWeeks(campaigns []SendRecord) int {
	earliest, latest := campaigns[0].SentDate, campaigns[0].SentDate
	for _, r := range campaigns[1:] {
		if r.SentDate.Before(earliest) {
			earliest = r.SentDate
		}
		if r.SentDate.After(latest) {
			latest = r.SentDate
		}
	}
	firstFull := weekStart(earliest)
	if firstFull.Before(truncateDay(earliest)) {
		firstFull = firstFull.AddDate(0, 0, 7)
	}
	endExclusive := truncateDay(latest).AddDate(0, 0, 1)
	if endExclusive.Before(firstFull) {
		return 0
	}
	return int(endExclusive.Sub(firstFull).Hours() / 24 / 7)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type dowBaseline struct {
	emails, opens, clicks, orders, unsubs, spam int
	revenue                                     float64
}

func aggregateByWeekday(campaigns []SendRecord) ([]DowAggregate, dowBaseline) {
	days := make([]DowAggregate, 7)
	for i := range days {
		days[i] = DowAggregate{Day: i, DayName: dowNames[i]}
	}
	var base dowBaseline
	for _, r := range campaigns {
		idx := (int(r.SentDate.UTC().Weekday()) + 6) % 7 // Monday=0
		d := &days[idx]
		d.Campaigns++
		d.Emails += r.EmailsSent
		d.Opens += r.UniqueOpens
		d.Clicks += r.UniqueClicks
		d.Orders += r.TotalOrders
		d.Unsubscribes += r.Unsubscribes
		d.SpamComplaints += r.SpamComplaints
		d.Revenue += r.Revenue

		base.emails += r.EmailsSent
		base.opens += r.UniqueOpens
		base.clicks += r.UniqueClicks
		base.orders += r.TotalOrders
		base.unsubs += r.Unsubscribes
		base.spam += r.SpamComplaints
		base.revenue += r.Revenue
	}
	return days, base
}

// revenueIndex is the day's revenue-per-email relative to baseline, dampened
// when one outsized campaign carries the day (a one-off spike is not a
// schedule signal).
func revenueIndex(d *DowAggregate, base dowBaseline, campaigns []SendRecord, cfg DayOfWeekConfig) float64 {
	baseRPE := 0.0
	if base.emails > 0 {
		baseRPE = base.revenue / float64(base.emails)
	}
	if baseRPE <= 0 || d.Emails == 0 {
		return 0
	}
	idx := (d.Revenue / float64(d.Emails)) / baseRPE

	if spikeDominatedDay(d, campaigns, cfg) {
		idx *= cfg.SpikeDampening
	}
	return idx
}

// spikeDominatedDay reports whether a single campaign both carries most of
// the day's volume and out-earns the runner-up by a wide margin.
func spikeDominatedDay(d *DowAggregate, campaigns []SendRecord, cfg DayOfWeekConfig) bool {
	var dayCampaigns []SendRecord
	for _, r := range campaigns {
		if (int(r.SentDate.UTC().Weekday())+6)%7 == d.Day {
			dayCampaigns = append(dayCampaigns, r)
		}
	}
	if len(dayCampaigns) < 2 {
		return false
	}
	sort.Slice(dayCampaigns, func(i, j int) bool {
		return dayCampaigns[i].Revenue > dayCampaigns[j].Revenue
	})
	top := dayCampaigns[0]
	next := dayCampaigns[1]
	if d.Emails == 0 {
		return false
	}
	volumeShare := float64(top.EmailsSent) / float64(d.Emails)
	return volumeShare >= cfg.SpikeVolumeShare &&
		next.Revenue > 0 &&
		top.Revenue >= cfg.SpikeRevenueRatio*next.Revenue
}

// engagementIndex blends open, click, and conversion ratios vs baseline at
// 50/30/20.
func engagementIndex(d *DowAggregate, base dowBaseline) float64 {
	openRatio := rateRatio(d.Opens, d.Emails, base.opens, base.emails)
	clickRatio := rateRatio(d.Clicks, d.Emails, base.clicks, base.emails)
	convRatio := rateRatio(d.Orders, d.Emails, base.orders, base.emails)
	return 0.5*openRatio + 0.3*clickRatio + 0.2*convRatio
}

func rateRatio(num, den, baseNum, baseDen int) float64 {
	if den == 0 || baseDen == 0 || baseNum == 0 {
		return 0
	}
	rate := float64(num) / float64(den)
	baseRate := float64(baseNum) / float64(baseDen)
	return rate / baseRate
}

// riskIndex is 1 minus a capped penalty for spam/unsub rates running above
// baseline. The cap keeps one bad day from zeroing the whole composite.
func riskIndex(d *DowAggregate, base dowBaseline, cfg DayOfWeekConfig) float64 {
	penalty := 0.0
	penalty += excessPenalty(d.SpamComplaints, d.Emails, base.spam, base.emails)
	penalty += excessPenalty(d.Unsubscribes, d.Emails, base.unsubs, base.emails)
	if penalty > cfg.RiskPenaltyCap {
		penalty = cfg.RiskPenaltyCap
	}
	return 1 - penalty
}

// excessPenalty converts a rate's relative excess over baseline into a
// 0..0.4 penalty contribution (0.2 per doubled rate, clamped).
func excessPenalty(num, den, baseNum, baseDen int) float64 {
	if den == 0 || baseDen == 0 || baseNum == 0 {
		return 0
	}
	rate := float64(num) / float64(den)
	baseRate := float64(baseNum) / float64(baseDen)
	excess := rate/baseRate - 1
	if excess <= 0 {
		return 0
	}
	if excess > 2 {
		excess = 2
	}
	return excess * 0.2
}

func eligibleDays(days []DowAggregate) []DowAggregate {
	var out []DowAggregate
	for _, d := range days {
		if d.Eligible {
			out = append(out, d)
		}
	}
	return out
}

func inferFrequency(campaignCount, fullWeeks int) int {
	if fullWeeks == 0 {
		return 1
	}
	f := int(math.Round(float64(campaignCount) / float64(fullWeeks)))
	if f < 1 {
		f = 1
	}
	return f
}

// pickDays selects the top n eligible days whose composite reaches the
// frequency-dependent inclusion ratio of the best score, excluding days whose
// spam or unsub rates are risk-blocked and substituting the next-best safe
// day when exclusion shrinks the set.
func pickDays(days []DowAggregate, eligible []DowAggregate, n int, base dowBaseline, cfg DayOfWeekConfig) []string {
	ranked := append([]DowAggregate(nil), eligible...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Composite > ranked[j].Composite })

	top := ranked[0].Composite
	ratio := inclusionRatios[min(n, len(inclusionRatios))-1]

	baseUnsubRate := 0.0
	if base.emails > 0 {
		baseUnsubRate = float64(base.unsubs) / float64(base.emails)
	}

	var picked []string
	excluded := 0
	for _, d := range ranked {
		if len(picked) == n {
			break
		}
		if d.Composite < ratio*top {
			// Ranked descending, so nothing further clears the band.
			break
		}
		if blocked(d, baseUnsubRate, cfg) {
			markExcluded(days, d.Day)
			excluded++
			continue
		}
		picked = append(picked, d.DayName)
	}

	// Substitution pass: only a risk exclusion justifies reaching below the
	// inclusion band. A short set from the band alone stays short.
	if excluded > 0 && len(picked) < n {
		for _, d := range ranked {
			if len(picked) == n {
				break
			}
			if blocked(d, baseUnsubRate, cfg) || containsString(picked, d.DayName) {
				continue
			}
			picked = append(picked, d.DayName)
		}
	}
	return picked
}

func blocked(d DowAggregate, baseUnsubRate float64, cfg DayOfWeekConfig) bool {
	if d.Emails == 0 {
		return false
	}
	spamRate := float64(d.SpamComplaints) / float64(d.Emails)
	unsubRate := float64(d.Unsubscribes) / float64(d.Emails)
	return spamRate >= cfg.SpamBlockRate || unsubRate > baseUnsubRate+cfg.UnsubExcessAbsolute
}

func markExcluded(days []DowAggregate, day int) {
	for i := range days {
		if days[i].Day == day {
			days[i].Excluded = true
			return
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
