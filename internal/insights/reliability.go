package insights

import (
	"math"
	"time"
)

// ReliabilityScope selects which revenue stream the scorer looks at.
type ReliabilityScope string

const (
	ScopeAll      ReliabilityScope = "all"
	ScopeCampaign ReliabilityScope = "campaign"
	ScopeFlow     ReliabilityScope = "flow"
)

// TraceFunc receives diagnostic key/value pairs from the scorer. Wire it to a
// structured logger in development; leave nil in production and tests.
type TraceFunc func(msg string, fields ...any)

// ReliabilityConfig holds the scorer's calibration constants. The defaults
// are empirically tuned operating points, not derived values; override them
// only deliberately.
type ReliabilityConfig struct {
	MinPeriods       int        // minimum complete periods before scoring at all
	WindowSize       int        // recent periods considered for the score
	DecayK           float64    // reliability = 100 * exp(-DecayK * robustCV)
	AnomalyThreshold float64    // |modified z| above this flags a period
	Gaps             GapsConfig // calibration for the card's gap fields; zero value means defaults
	Trace            TraceFunc  // optional diagnostics sink
}

// DefaultReliabilityConfig returns the standard calibration.
func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		MinPeriods:       4,
		WindowSize:       12,
		DecayK:           1.15,
		AnomalyThreshold: 2.5,
		Gaps:             DefaultGapsConfig(),
	}
}

// madScale makes MAD consistent with the standard deviation under normality.
const madScale = 1.4826

// ReliabilityPoint is one period's contribution to the reliability chart.
type ReliabilityPoint struct {
	PeriodStart time.Time `json:"period_start"`
	Label       string    `json:"label"`
	Revenue     float64   `json:"revenue"`
	Index       float64   `json:"index"` // revenue / window median
	ModifiedZ   float64   `json:"modified_z"`
	Anomaly     bool      `json:"anomaly"`
}

// ReliabilityResult is the revenue-reliability card. Reliability and
// TrendDelta are nil when there is not enough history to compute them.
type ReliabilityResult struct {
	State                string             `json:"state"` // "ok" or "insufficient"
	Scope                ReliabilityScope   `json:"scope"`
	Granularity          Granularity        `json:"granularity"`
	Reliability          *int               `json:"reliability"`
	TrendDelta           *int               `json:"trend_delta"`
	Median               float64            `json:"median"`
	MAD                  float64            `json:"mad"`
	Points               []ReliabilityPoint `json:"points"`
	ZeroCampaignWeeks    int                `json:"zero_campaign_weeks"`
	EstimatedLostRevenue *float64           `json:"estimated_lost_revenue"`
}

const (
	stateOK            = "ok"
	stateInsufficient  = "insufficient"
	stateNotEnoughData = "not_enough_data"
)

// ComputeReliability scores how dependable periodic revenue is on a 0-100
// scale using robust dispersion (MAD / median) over recent complete periods.
// Records should already be windowed by the caller; buckets are built here so
// the gap-filled ladder and completeness boundary are always consistent.
func ComputeReliability(records []SendRecord, g Granularity, scope ReliabilityScope, boundary time.Time, cfg ReliabilityConfig) ReliabilityResult {
	buckets := AggregateByPeriod(records, g, boundary)
	return ScoreBuckets(buckets, g, scope, cfg)
}

// ScoreBuckets runs the reliability algorithm over an already-aggregated
// bucket series.
func ScoreBuckets(buckets []PeriodBucket, g Granularity, scope ReliabilityScope, cfg ReliabilityConfig) ReliabilityResult {
	result := ReliabilityResult{State: stateInsufficient, Scope: scope, Granularity: g}

	complete := completeBuckets(buckets)
	if len(complete) < cfg.MinPeriods {
		trace(cfg.Trace, "reliability: insufficient history", "complete_periods", len(complete), "min", cfg.MinPeriods)
		return result
	}

	values := make([]float64, len(complete))
	for i, b := range complete {
		values[i] = scopeRevenue(b, scope)
	}

	score, med, mad, windowLen, ok := scoreSeries(values, cfg)
	if !ok {
		// Every value in the entire series is zero: no revenue baseline
		// exists, so reliability is pinned at 0 and no points are emitted.
		zero := 0
		result.State = stateOK
		result.Reliability = &zero
		attachGapFields(&result, complete, scope, g, cfg.Gaps)
		return result
	}

	result.State = stateOK
	result.Reliability = &score
	result.Median = med
	result.MAD = mad

	// Trend: the same score over the window shifted back one period.
	if len(values) >= cfg.WindowSize+1 {
		if prior, _, _, _, priorOK := scoreSeries(values[:len(values)-1], cfg); priorOK {
			delta := score - prior
			result.TrendDelta = &delta
		}
	}

	result.Points = anomalyPoints(complete, values, med, cfg)
	attachGapFields(&result, complete, scope, g, cfg.Gaps)

	trace(cfg.Trace, "reliability: scored",
		"score", score, "median", med, "mad", mad, "window", windowLen, "periods", len(values))
	return result
}

// scoreSeries applies steps 2-5 of the scoring algorithm to a complete-period
// value series. ok is false only when no non-zero revenue exists anywhere in
// the series (median <= 0 with every fallback exhausted).
func scoreSeries(values []float64, cfg ReliabilityConfig) (score int, med, mad float64, windowLen int, ok bool) {
	if len(values) == 0 {
		return 0, 0, 0, 0, false
	}

	window := selectWindow(values, cfg.WindowSize)

	med = median(positives(window))
	if med <= 0 {
		// All-window fallback, then the most recent non-zero values from the
		// whole series. An 11-zero-weeks-plus-one-real-week window must not
		// score as perfectly reliable.
		med = median(window)
	}
	if med <= 0 {
		recent := recentPositives(values, cfg.WindowSize)
		if len(recent) == 0 {
			return 0, 0, 0, len(window), false
		}
		window = recent
		med = median(recent)
	}

	mad = medianAbsDeviation(window, med)
	robustCV := mad / med
	score = int(math.Round(100 * math.Exp(-cfg.DecayK*robustCV)))
	return score, med, mad, len(window), true
}

// selectWindow takes the most recent windowSize values, expanding backward
// until the window contains at least min(3, windowSize/4) non-zero values or
// the series is exhausted.
func selectWindow(values []float64, windowSize int) []float64 {
	target := windowSize / 4
	if target > 3 {
		target = 3
	}
	start := len(values) - windowSize
	if start < 0 {
		start = 0
	}
	for start > 0 && countPositive(values[start:]) < target {
		start--
	}
	return values[start:]
}

func recentPositives(values []float64, limit int) []float64 {
	var out []float64
	for i := len(values) - 1; i >= 0 && len(out) < limit; i-- {
		if values[i] > 0 {
			out = append(out, values[i])
		}
	}
	return out
}

// anomalyPoints computes modified z-scores over a context window of
// windowSize+4 periods and flags |z| above the threshold.
func anomalyPoints(complete []PeriodBucket, values []float64, scoreMedian float64, cfg ReliabilityConfig) []ReliabilityPoint {
	contextLen := cfg.WindowSize + 4
	start := len(values) - contextLen
	if start < 0 {
		start = 0
	}
	context := values[start:]
	ctxMedian := median(context)
	ctxMAD := medianAbsDeviation(context, ctxMedian)

	points := make([]ReliabilityPoint, 0, len(context))
	for i, v := range context {
		b := complete[start+i]
		p := ReliabilityPoint{
			PeriodStart: b.PeriodStart,
			Label:       b.Label,
			Revenue:     v,
		}
		if scoreMedian > 0 {
			p.Index = v / scoreMedian
		}
		if ctxMAD > 0 {
			p.ModifiedZ = (v - ctxMedian) / (madScale * ctxMAD)
			p.Anomaly = math.Abs(p.ModifiedZ) > cfg.AnomalyThreshold
		}
		points = append(points, p)
	}
	return points
}

// attachGapFields surfaces the zero-campaign-week count and short-gap loss
// estimate on the reliability card for campaign-bearing scopes.
func attachGapFields(result *ReliabilityResult, complete []PeriodBucket, scope ReliabilityScope, g Granularity, gapsCfg GapsConfig) {
	if scope == ScopeFlow || g != GranularityWeek {
		return
	}
	if gapsCfg == (GapsConfig{}) {
		gapsCfg = DefaultGapsConfig()
	}
	gaps := estimateGaps(complete, gapsCfg)
	result.ZeroCampaignWeeks = gaps.ZeroSendPeriods
	result.EstimatedLostRevenue = gaps.EstimatedLostRevenue
}

func scopeRevenue(b PeriodBucket, scope ReliabilityScope) float64 {
	switch scope {
	case ScopeCampaign:
		return b.CampaignRevenue
	case ScopeFlow:
		return b.FlowRevenue
	default:
		return b.TotalRevenue
	}
}

func positives(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func countPositive(values []float64) int {
	n := 0
	for _, v := range values {
		if v > 0 {
			n++
		}
	}
	return n
}

func trace(fn TraceFunc, msg string, fields ...any) {
	if fn != nil {
		fn(msg, fields...)
	}
}
