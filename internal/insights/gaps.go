package insights

import "time"

// GapsConfig holds the gap-loss estimator's calibration. Reference-window
// sizes follow the two-neighbor (single-period run) / four-neighbor
// (multi-period run) policy with no additional dampening factor.
type GapsConfig struct {
	MaxEstimatedRun  int     // runs longer than this are treated as deliberate pauses
	RefsSingle       int     // non-zero neighbors per side for a 1-period run
	RefsMulti        int     // non-zero neighbors per side for longer runs
	RecentWindow     int     // complete periods examined for the estimator gate and cap
	MinPeriods       int     // complete periods required before estimating at all
	MinNonZeroRecent int     // non-zero periods required inside RecentWindow
	CapPercentile    float64 // per-period estimate cap within recent non-zero revenue
}

// DefaultGapsConfig returns the standard calibration.
func DefaultGapsConfig() GapsConfig {
	return GapsConfig{
		MaxEstimatedRun:  4,
		RefsSingle:       2,
		RefsMulti:        4,
		RecentWindow:     26,
		MinPeriods:       26,
		MinNonZeroRecent: 8,
		CapPercentile:    0.90,
	}
}

// GapRun is one maximal stretch of consecutive zero-send periods.
type GapRun struct {
	PeriodStart   time.Time `json:"period_start"`
	Length        int       `json:"length"`
	EstimatedLoss *float64  `json:"estimated_loss"` // nil for runs too long to extrapolate
}

// GapsLossesResult is the sending-gaps report: how many periods had no
// campaign activity, how long the stretches were, and what short gaps likely
// cost. EstimatedLostRevenue is nil when history is too thin to estimate
// without misleading the operator.
type GapsLossesResult struct {
	State                string      `json:"state"`
	Granularity          Granularity `json:"granularity"`
	ZeroSendPeriods      int         `json:"zero_send_periods"`
	ZeroRevenuePeriods   int         `json:"zero_revenue_periods"` // sends went out, nothing came back
	LongestRun           int         `json:"longest_run"`
	Runs                 []GapRun    `json:"runs"`
	EstimatedLostRevenue *float64    `json:"estimated_lost_revenue"`
	EstimateAvailable    bool        `json:"estimate_available"`
}

// ComputeGapsLosses builds weekly buckets from the records and runs the gap
// classifier and short-gap loss estimator over the complete periods.
func ComputeGapsLosses(records []SendRecord, g Granularity, boundary time.Time, cfg GapsConfig) GapsLossesResult {
	buckets := AggregateByPeriod(records, g, boundary)
	result := estimateGaps(completeBuckets(buckets), cfg)
	result.Granularity = g
	return result
}

func estimateGaps(complete []PeriodBucket, cfg GapsConfig) GapsLossesResult {
	result := GapsLossesResult{State: stateOK, Granularity: GranularityWeek}
	if len(complete) == 0 {
		result.State = stateInsufficient
		return result
	}

	zeroSend := make([]bool, len(complete))
	for i, b := range complete {
		switch {
		case b.CampaignSends == 0 && b.CampaignRevenue == 0:
			zeroSend[i] = true
			result.ZeroSendPeriods++
		case b.CampaignSends > 0 && b.CampaignRevenue == 0:
			result.ZeroRevenuePeriods++
		}
	}

	runs := detectRuns(zeroSend)
	for _, r := range runs {
		if r.length > result.LongestRun {
			result.LongestRun = r.length
		}
	}

	estimable := estimatorGateOpen(complete, cfg)
	result.EstimateAvailable = estimable

	capValue := revenueCap(complete, cfg)

	var total float64
	var estimatedAny bool
	for _, run := range runs {
		gr := GapRun{PeriodStart: complete[run.start].PeriodStart, Length: run.length}
		if estimable && run.length >= 1 && run.length <= cfg.MaxEstimatedRun {
			if loss, ok := estimateRunLoss(complete, run, capValue, cfg); ok {
				gr.EstimatedLoss = &loss
				total += loss
				estimatedAny = true
			}
		}
		result.Runs = append(result.Runs, gr)
	}
	if estimable && estimatedAny {
		result.EstimatedLostRevenue = &total
	}
	return result
}

type gapRun struct {
	start  int
	length int
}

func detectRuns(zeroSend []bool) []gapRun {
	var runs []gapRun
	for i := 0; i < len(zeroSend); {
		if !zeroSend[i] {
			i++
			continue
		}
		start := i
		for i < len(zeroSend) && zeroSend[i] {
			i++
		}
		runs = append(runs, gapRun{start: start, length: i - start})
	}
	return runs
}

// estimatorGateOpen requires enough history that imputed numbers are
// defensible: a long complete series and a recent window that is mostly live.
func estimatorGateOpen(complete []PeriodBucket, cfg GapsConfig) bool {
	if len(complete) < cfg.MinPeriods {
		return false
	}
	start := len(complete) - cfg.RecentWindow
	if start < 0 {
		start = 0
	}
	recent := complete[start:]
	nonZero := 0
	for _, b := range recent {
		if b.CampaignRevenue > 0 {
			nonZero++
		}
	}
	return nonZero >= cfg.MinNonZeroRecent
}

// revenueCap returns the per-period estimate ceiling: the CapPercentile of
// non-zero campaign revenue across the most recent RecentWindow periods.
func revenueCap(complete []PeriodBucket, cfg GapsConfig) float64 {
	start := len(complete) - cfg.RecentWindow
	if start < 0 {
		start = 0
	}
	var nonZero []float64
	for _, b := range complete[start:] {
		if b.CampaignRevenue > 0 {
			nonZero = append(nonZero, b.CampaignRevenue)
		}
	}
	return Percentile(nonZero, cfg.CapPercentile)
}

// estimateRunLoss imputes the revenue a short zero-send run likely cost from
// the nearest non-zero neighboring periods on each side, with outlier
// trimming and a percentile cap.
func estimateRunLoss(complete []PeriodBucket, run gapRun, capValue float64, cfg GapsConfig) (float64, bool) {
	perSide := cfg.RefsMulti
	if run.length == 1 {
		perSide = cfg.RefsSingle
	}

	refs := neighborRevenues(complete, run.start-1, -1, perSide)
	refs = append(refs, neighborRevenues(complete, run.start+run.length, +1, perSide)...)
	if len(refs) == 0 {
		return 0, false
	}

	refs = trimReferences(refs)
	perPeriod := median(refs)
	if perPeriod <= 0 {
		return 0, false
	}
	if capValue > 0 && perPeriod > capValue {
		perPeriod = capValue
	}
	return perPeriod * float64(run.length), true
}

func neighborRevenues(complete []PeriodBucket, from, step, limit int) []float64 {
	var out []float64
	for i := from; i >= 0 && i < len(complete) && len(out) < limit; i += step {
		if v := complete[i].CampaignRevenue; v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// trimReferences removes outliers before the median: an IQR fence when at
// least 5 reference points exist, otherwise a clamp to the [p10, p90] band.
func trimReferences(refs []float64) []float64 {
	if len(refs) >= 5 {
		q1 := Percentile(refs, 0.25)
		q3 := Percentile(refs, 0.75)
		iqr := q3 - q1
		lo := q1 - 1.5*iqr
		hi := q3 + 1.5*iqr
		kept := make([]float64, 0, len(refs))
		for _, v := range refs {
			if v >= lo && v <= hi {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			return kept
		}
		return refs
	}

	p10 := Percentile(refs, 0.10)
	p90 := Percentile(refs, 0.90)
	out := make([]float64, len(refs))
	for i, v := range refs {
		switch {
		case v < p10:
			out[i] = p10
		case v > p90:
			out[i] = p90
		default:
			out[i] = v
		}
	}
	return out
}
