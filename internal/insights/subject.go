package insights

import (
	"math"
	"sort"
	"unicode/utf8"
)

// SubjectMetric selects which per-send outcome the analyzer compares.
type SubjectMetric string

const (
	MetricOpenRate        SubjectMetric = "open_rate"
	MetricClickRate       SubjectMetric = "click_rate"
	MetricClickToOpenRate SubjectMetric = "click_to_open_rate"
	MetricRevenuePerEmail SubjectMetric = "revenue_per_email"
)

// IsRate reports whether the metric is a proportion (testable with z/Fisher)
// as opposed to a continuous per-email amount (testable with the bootstrap).
func (m SubjectMetric) IsRate() bool {
	return m != MetricRevenuePerEmail
}

// Reliability verdict methods.
const (
	MethodNone      = "none"
	MethodZ         = "z"
	MethodFisher    = "fisher"
	MethodBootstrap = "bootstrap"
)

// SubjectConfig holds the analyzer's gating thresholds.
type SubjectConfig struct {
	MinCampaigns        int     // volume eligibility: campaigns carrying the feature
	MinVolumeShare      float64 // volume eligibility: share of total email volume
	SignificanceLevel   float64 // threshold on the BH-adjusted p-value
	BootstrapIterations int
	WinsorizePct        float64 // upper cap applied to per-campaign RPE before resampling
	MaxExamples         int
}

// DefaultSubjectConfig returns the standard calibration.
func DefaultSubjectConfig() SubjectConfig {
	return SubjectConfig{
		MinCampaigns:        5,
		MinVolumeShare:      0.02,
		SignificanceLevel:   0.05,
		BootstrapIterations: 1000,
		WinsorizePct:        0.99,
		MaxExamples:         5,
	}
}

// FeatureAggregate is the accumulated outcome counters for one feature subset
// plus the derived metric value.
type FeatureAggregate struct {
	CountCampaigns int     `json:"count_campaigns"`
	TotalEmails    int     `json:"total_emails"`
	TotalOpens     int     `json:"total_opens"`
	TotalClicks    int     `json:"total_clicks"`
	TotalRevenue   float64 `json:"total_revenue"`
	Value          float64 `json:"value"`
}

// FeatureStat is one analyzed subject-line feature: its aggregate, lift vs the
// baseline, examples, and the reliability verdict that gates whether it may be
// shown as an insight.
type FeatureStat struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  string `json:"kind"` // "length" or "category"
	FeatureAggregate
	LiftVsBaseline *float64     `json:"lift_vs_baseline"` // relative %, nil when baseline is zero
	Examples       []string     `json:"examples"`
	Eligible       bool         `json:"eligible"`
	Reliable       bool         `json:"reliable"`
	Method         string       `json:"method"`
	AdjustedP      *float64     `json:"adjusted_p,omitempty"`
	CI             *BootstrapCI `json:"ci,omitempty"`
}

// SubjectAnalysisResult is the full subject-line card for one metric.
type SubjectAnalysisResult struct {
	State          string           `json:"state"`
	Metric         SubjectMetric    `json:"metric"`
	Baseline       FeatureAggregate `json:"baseline"`
	TotalCampaigns int              `json:"total_campaigns"`
	TotalEmails    int              `json:"total_emails"`
	LengthBins     []FeatureStat    `json:"length_bins"`
	Categories     []FeatureStat    `json:"categories"`
}

// AnalyzeSubjectLines computes per-feature aggregates, lift vs baseline, and a
// statistically gated reliability verdict for every length bin and curated
// category. Features are recomputed fresh on every call; nothing persists.
//
// Gating: a feature must carry at least MinCampaigns campaigns and
// MinVolumeShare of the email volume to be tested at all. Rate metrics get a
// two-proportion z-test (subset vs rest) with a Fisher exact fallback when the
// normal approximation is unsafe; all raw p-values are pooled into one
// Benjamini-Hochberg correction before thresholding. Revenue-per-email gets a
// winsorized, log1p bootstrap CI on the per-campaign distribution.
func AnalyzeSubjectLines(records []SendRecord, metric SubjectMetric, cfg SubjectConfig) SubjectAnalysisResult {
	campaigns := subjectCampaigns(records)

	result := SubjectAnalysisResult{State: stateOK, Metric: metric}
	if len(campaigns) == 0 {
		result.State = stateInsufficient
		return result
	}

	baseline := aggregateSubset(campaigns, allIndices(len(campaigns)), metric)
	result.Baseline = baseline
	result.TotalCampaigns = baseline.CountCampaigns
	result.TotalEmails = baseline.TotalEmails

	for _, bin := range subjectLengthBins {
		b := bin
		stat := buildFeature(campaigns, b.Key, b.Label, "length", metric, baseline, cfg, func(r SendRecord) bool {
			return b.contains(utf8.RuneCountInString(r.SubjectText))
		})
		result.LengthBins = append(result.LengthBins, stat)
	}
	for _, cat := range subjectCategories {
		c := cat
		stat := buildFeature(campaigns, c.Key, c.Label, "category", metric, baseline, cfg, func(r SendRecord) bool {
			return c.match(r.SubjectText)
		})
		result.Categories = append(result.Categories, stat)
	}

	if metric.IsRate() {
		gateRateFeatures(campaigns, metric, cfg, result.LengthBins, result.Categories)
	} else {
		gateRevenueFeatures(campaigns, cfg, result.LengthBins, result.Categories)
	}
	return result
}

// subjectCampaigns keeps only campaign-channel records that carry a subject.
func subjectCampaigns(records []SendRecord) []SendRecord {
	out := make([]SendRecord, 0, len(records))
	for _, r := range records {
		if r.Channel != ChannelFlow && r.SubjectText != "" {
			out = append(out, r)
		}
	}
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func buildFeature(campaigns []SendRecord, key, label, kind string, metric SubjectMetric, baseline FeatureAggregate, cfg SubjectConfig, matches func(SendRecord) bool) FeatureStat {
	var idx []int
	for i, r := range campaigns {
		if matches(r) {
			idx = append(idx, i)
		}
	}

	agg := aggregateSubset(campaigns, idx, metric)
	stat := FeatureStat{
		Key:              key,
		Label:            label,
		Kind:             kind,
		FeatureAggregate: agg,
		Examples:         topExamples(campaigns, idx, cfg.MaxExamples),
		Method:           MethodNone,
	}
	if baseline.Value > 0 {
		lift := (agg.Value - baseline.Value) / baseline.Value * 100
		stat.LiftVsBaseline = &lift
	}
	stat.Eligible = agg.CountCampaigns >= cfg.MinCampaigns &&
		baseline.TotalEmails > 0 &&
		float64(agg.TotalEmails) >= cfg.MinVolumeShare*float64(baseline.TotalEmails)
	return stat
}

func aggregateSubset(campaigns []SendRecord, idx []int, metric SubjectMetric) FeatureAggregate {
	var agg FeatureAggregate
	for _, i := range idx {
		r := campaigns[i]
		agg.CountCampaigns++
		agg.TotalEmails += r.EmailsSent
		agg.TotalOpens += r.UniqueOpens
		agg.TotalClicks += r.UniqueClicks
		agg.TotalRevenue += r.Revenue
	}
	agg.Value = metricValue(agg, metric)
	return agg
}

func metricValue(agg FeatureAggregate, metric SubjectMetric) float64 {
	switch metric {
	case MetricOpenRate:
		if agg.TotalEmails == 0 {
			return 0
		}
		return float64(agg.TotalOpens) / float64(agg.TotalEmails)
	case MetricClickRate:
		if agg.TotalEmails == 0 {
			return 0
		}
		return float64(agg.TotalClicks) / float64(agg.TotalEmails)
	case MetricClickToOpenRate:
		if agg.TotalOpens == 0 {
			return 0
		}
		return float64(agg.TotalClicks) / float64(agg.TotalOpens)
	case MetricRevenuePerEmail:
		if agg.TotalEmails == 0 {
			return 0
		}
		return agg.TotalRevenue / float64(agg.TotalEmails)
	}
	return 0
}

func topExamples(campaigns []SendRecord, idx []int, limit int) []string {
	sorted := append([]int(nil), idx...)
	sort.Slice(sorted, func(a, b int) bool {
		return campaigns[sorted[a]].EmailsSent > campaigns[sorted[b]].EmailsSent
	})
	var out []string
	seen := make(map[string]struct{})
	for _, i := range sorted {
		s := campaigns[i].SubjectText
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// gateRateFeatures tests every eligible rate feature (subset vs everything
// else), pools the raw p-values across all tested features, applies one
// Benjamini-Hochberg pass, and thresholds the adjusted values.
func gateRateFeatures(campaigns []SendRecord, metric SubjectMetric, cfg SubjectConfig, groups ...[]FeatureStat) {
	type tested struct {
		stat *FeatureStat
		p    float64
	}
	var pool []tested

	for _, group := range groups {
		for i := range group {
			stat := &group[i]
			if !stat.Eligible {
				continue
			}
			subset, rest := rateCounts(campaigns, stat, metric)
			if rest.Total <= 0 || subset.Total <= 0 {
				continue
			}
			z := TwoProportionZTest(subset, rest)
			if z.Valid {
				stat.Method = MethodZ
				pool = append(pool, tested{stat: stat, p: z.P})
				continue
			}
			// Normal approximation unsafe: exact test on the 2x2 table.
			p := FishersExactTwoSided(
				subset.Success, subset.Total-subset.Success,
				rest.Success, rest.Total-rest.Success,
			)
			stat.Method = MethodFisher
			pool = append(pool, tested{stat: stat, p: p})
		}
	}

	if len(pool) == 0 {
		return
	}
	raw := make([]float64, len(pool))
	for i, t := range pool {
		raw[i] = t.p
	}
	adjusted := BenjaminiHochberg(raw)
	for i, t := range pool {
		adj := adjusted[i]
		t.stat.AdjustedP = &adj
		t.stat.Reliable = adj < cfg.SignificanceLevel
	}
}

// rateCounts splits the campaign population into the feature subset and the
// complement for the metric's success/total definition.
func rateCounts(campaigns []SendRecord, stat *FeatureStat, metric SubjectMetric) (subset, rest Counts) {
	var totalSuccess, totalTrials int
	switch metric {
	case MetricClickToOpenRate:
		subset = Counts{Success: stat.TotalClicks, Total: stat.TotalOpens}
		for _, r := range campaigns {
			totalSuccess += r.UniqueClicks
			totalTrials += r.UniqueOpens
		}
	case MetricClickRate:
		subset = Counts{Success: stat.TotalClicks, Total: stat.TotalEmails}
		for _, r := range campaigns {
			totalSuccess += r.UniqueClicks
			totalTrials += r.EmailsSent
		}
	default: // open rate
		subset = Counts{Success: stat.TotalOpens, Total: stat.TotalEmails}
		for _, r := range campaigns {
			totalSuccess += r.UniqueOpens
			totalTrials += r.EmailsSent
		}
	}
	rest = Counts{Success: totalSuccess - subset.Success, Total: totalTrials - subset.Total}
	return subset, rest
}

// gateRevenueFeatures gates revenue-per-email features with a percentile
// bootstrap on the winsorized, log1p-transformed per-campaign RPE
// distributions (feature subset vs rest). Reliable iff the 95% CI excludes
// zero.
func gateRevenueFeatures(campaigns []SendRecord, cfg SubjectConfig, groups ...[]FeatureStat) {
	for _, group := range groups {
		for i := range group {
			stat := &group[i]
			if !stat.Eligible {
				continue
			}
			subset, rest := rpeDistributions(campaigns, stat)
			if len(subset) == 0 || len(rest) == 0 {
				continue
			}
			subset = Winsorize(subset, cfg.WinsorizePct)
			rest = Winsorize(rest, cfg.WinsorizePct)
			ci := BootstrapDiffCI(subset, rest, cfg.BootstrapIterations, math.Log1p)
			stat.Method = MethodBootstrap
			stat.CI = &ci
			stat.Reliable = ci.Passed
		}
	}
}

func rpeDistributions(campaigns []SendRecord, stat *FeatureStat) (subset, rest []float64) {
	matcher := featureMatcher(stat.Key)
	if matcher == nil {
		return nil, nil
	}
	for _, r := range campaigns {
		if r.EmailsSent == 0 {
			continue
		}
		rpe := r.Revenue / float64(r.EmailsSent)
		if matcher(r) {
			subset = append(subset, rpe)
		} else {
			rest = append(rest, rpe)
		}
	}
	return subset, rest
}

// featureMatcher resolves a feature key back to its record predicate.
func featureMatcher(key string) func(SendRecord) bool {
	for _, bin := range subjectLengthBins {
		if bin.Key == key {
			b := bin
			return func(r SendRecord) bool {
				return b.contains(utf8.RuneCountInString(r.SubjectText))
			}
		}
	}
	for _, cat := range subjectCategories {
		if cat.Key == key {
			c := cat
			return func(r SendRecord) bool { return c.match(r.SubjectText) }
		}
	}
	return nil
}
