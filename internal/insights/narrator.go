package insights

import (
	"fmt"
	"math"
	"strings"

	"github.com/osteele/liquid"
)

// Insight states, evaluated in order by the narration decision tree.
const (
	InsightInsufficient = "insufficient"
	InsightWarning      = "warning"
	InsightWins         = "wins"
	InsightGeneral      = "general"
)

// Warning kinds. Deliverability always outranks revenue.
const (
	WarningDeliverability = "deliverability"
	WarningRevenue        = "revenue"
)

// NarratorConfig holds the decision-tree thresholds. All values are tuned
// operating points carried over from production calibration.
type NarratorConfig struct {
	MinCampaigns        int     // below this the period is "insufficient"
	MinEmails           int     // below this the period is "insufficient"
	DeliverabilityRatio float64 // offending rate must exceed baseline * this
	SpamRateFloor       float64 // absolute floors so a tiny baseline can't trip the ratio
	UnsubRateFloor      float64
	BounceRateFloor     float64
	MinAffectedEmails   int     // offending campaigns must cover this much volume
	RevenueRPERatio     float64 // underperformer cutoff vs baseline RPE
	RevenueVolumeShare  float64 // underperformers must cover this share of volume
	WinsBigLift         float64 // lift (%) that alone qualifies as a win
	WinsModerateLift    float64 // lift (%) that qualifies with revenue share
	WinsRevenueShare    float64 // revenue share required with a moderate lift
}

// DefaultNarratorConfig returns the standard calibration.
func DefaultNarratorConfig() NarratorConfig {
	return NarratorConfig{
		MinCampaigns:        5,
		MinEmails:           5000,
		DeliverabilityRatio: 1.4,
		SpamRateFloor:       0.001,
		UnsubRateFloor:      0.005,
		BounceRateFloor:     0.02,
		MinAffectedEmails:   10000,
		RevenueRPERatio:     0.70,
		RevenueVolumeShare:  0.20,
		WinsBigLift:         100,
		WinsModerateLift:    50,
		WinsRevenueShare:    0.15,
	}
}

// SubjectLineInsight is the narrated subject-line card: a classification plus
// fixed-template natural-language copy parameterized by the findings.
type SubjectLineInsight struct {
	State       string       `json:"state"`
	WarningKind string       `json:"warning_kind,omitempty"`
	Headline    string       `json:"headline"`
	Summary     string       `json:"summary"`
	Paragraph   string       `json:"paragraph"`
	Highlight   *FeatureStat `json:"highlight,omitempty"`
	Campaigns   int          `json:"campaigns"`
	Emails      int          `json:"emails"`
}

// Narrator renders the insight templates through the Liquid engine with
// currency/percent/pluralization filters.
type Narrator struct {
	engine *liquid.Engine
	cfg    NarratorConfig
}

// NewNarrator builds a narrator with the given thresholds.
func NewNarrator(cfg NarratorConfig) *Narrator {
	engine := liquid.NewEngine()
	engine.RegisterFilter("currency", func(v float64) string {
		return "$" + groupThousands(fmt.Sprintf("%.2f", v))
	})
	engine.RegisterFilter("percent", func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	})
	engine.RegisterFilter("count", func(v int) string {
		return groupThousands(fmt.Sprintf("%d", v))
	})
	engine.RegisterFilter("pluralize", func(n int, singular, plural string) string {
		if n == 1 {
			return singular
		}
		return plural
	})
	return &Narrator{engine: engine, cfg: cfg}
}

// Fixed copy templates, one set per decision-tree branch.
const (
	tmplInsufficientHeadline = `Not enough campaign data yet`
	tmplInsufficientSummary  = `Only {{ campaigns | count }} {{ campaigns | pluralize: "campaign", "campaigns" }} and {{ emails | count }} emails in this period.`
	tmplInsufficientBody     = `We need at least {{ min_campaigns }} campaigns and {{ min_emails | count }} sent emails before subject-line patterns can be separated from noise. Keep sending and check back soon.`

	tmplDeliverabilityHeadline = `Deliverability warning: {{ issue }} rate is elevated`
	tmplDeliverabilitySummary  = `{{ affected_emails | count }} emails landed in campaigns with a {{ issue }} rate above {{ threshold | percent }}.`
	tmplDeliverabilityBody     = `At least one campaign pushed its {{ issue }} rate past {{ threshold | percent }} (baseline {{ baseline | percent }}). Sustained spikes like this damage sender reputation and suppress future revenue. Review the audience and content of the flagged sends before scaling volume.`

	tmplRevenueWarnHeadline = `Revenue warning: a large slice of volume is underperforming`
	tmplRevenueWarnSummary  = `Campaigns earning at or below {{ cutoff | percent }} of your usual revenue per email covered {{ share | percent }} of volume.`
	tmplRevenueWarnBody     = `{{ affected_emails | count }} emails went to campaigns earning {{ low_rpe | currency }} per email or less, versus a baseline of {{ baseline_rpe | currency }}. That slice is big enough to drag the whole period down; rework or retire those angles first.`

	tmplWinsHeadline = `"{{ feature }}" subject lines are outperforming`
	tmplWinsSummary  = `{{ feature }} lifted {{ metric }} by {{ lift | percent }} across {{ campaigns | count }} {{ campaigns | pluralize: "campaign", "campaigns" }}.`
	tmplWinsBody     = `Subject lines matching "{{ feature }}" beat your baseline by {{ lift | percent }} and the difference holds up statistically. Lean into this pattern in upcoming sends — it is earning its place.`

	tmplGeneralHeadline = `No standout subject-line pattern this period`
	tmplGeneralSummary  = `Performance was even across subject-line styles.`
	tmplGeneralBody     = `Nothing cleared the significance bar this period.{% if feature != "" %} "{{ feature }}" showed the best raw lift at {{ lift | percent }}, but not enough volume or consistency to act on yet.{% endif %} Keep testing distinct angles so a winner can emerge.`
)

// NarrateSubjectInsight classifies the period and renders the matching copy.
// The decision tree is evaluated in order; the first matching branch wins, and
// deliverability warnings outrank revenue warnings.
func (n *Narrator) NarrateSubjectInsight(records []SendRecord, analysis SubjectAnalysisResult) SubjectLineInsight {
	campaigns := subjectCampaigns(records)
	totals := aggregateSubset(campaigns, allIndices(len(campaigns)), MetricRevenuePerEmail)

	insight := SubjectLineInsight{
		Campaigns: totals.CountCampaigns,
		Emails:    totals.TotalEmails,
	}

	if totals.CountCampaigns < n.cfg.MinCampaigns || totals.TotalEmails < n.cfg.MinEmails {
		insight.State = InsightInsufficient
		n.render(&insight, tmplInsufficientHeadline, tmplInsufficientSummary, tmplInsufficientBody, liquid.Bindings{
			"campaigns":     totals.CountCampaigns,
			"emails":        totals.TotalEmails,
			"min_campaigns": n.cfg.MinCampaigns,
			"min_emails":    n.cfg.MinEmails,
		})
		return insight
	}

	if warn, ok := n.deliverabilityWarning(campaigns); ok {
		insight.State = InsightWarning
		insight.WarningKind = WarningDeliverability
		n.render(&insight, tmplDeliverabilityHeadline, tmplDeliverabilitySummary, tmplDeliverabilityBody, warn)
		return insight
	}

	if warn, ok := n.revenueWarning(campaigns, totals); ok {
		insight.State = InsightWarning
		insight.WarningKind = WarningRevenue
		n.render(&insight, tmplRevenueWarnHeadline, tmplRevenueWarnSummary, tmplRevenueWarnBody, warn)
		return insight
	}

	if best := bestHighlight(analysis, true); best != nil && n.qualifiesAsWin(best, analysis) {
		insight.State = InsightWins
		insight.Highlight = best
		n.render(&insight, tmplWinsHeadline, tmplWinsSummary, tmplWinsBody, liquid.Bindings{
			"feature":   best.Label,
			"metric":    strings.ReplaceAll(string(analysis.Metric), "_", " "),
			"lift":      *best.LiftVsBaseline,
			"campaigns": best.CountCampaigns,
		})
		return insight
	}

	insight.State = InsightGeneral
	bindings := liquid.Bindings{"feature": "", "lift": 0.0}
	if best := bestHighlight(analysis, false); best != nil {
		insight.Highlight = best
		bindings["feature"] = best.Label
		bindings["lift"] = *best.LiftVsBaseline
	}
	n.render(&insight, tmplGeneralHeadline, tmplGeneralSummary, tmplGeneralBody, bindings)
	return insight
}

// deliverabilityWarning scans for campaigns whose spam, unsub, or bounce rate
// exceeds max(baseline*ratio, floor), and fires when the offenders cover
// enough volume. The worst issue by affected volume wins.
func (n *Narrator) deliverabilityWarning(campaigns []SendRecord) (liquid.Bindings, bool) {
	var totalEmails, totalSpam, totalUnsub, totalBounce int
	for _, r := range campaigns {
		totalEmails += r.EmailsSent
		totalSpam += r.SpamComplaints
		totalUnsub += r.Unsubscribes
		totalBounce += r.Bounces
	}
	if totalEmails == 0 {
		return nil, false
	}

	issues := []struct {
		name     string
		baseline float64
		floor    float64
		rate     func(SendRecord) float64
	}{
		{"spam complaint", float64(totalSpam) / float64(totalEmails), n.cfg.SpamRateFloor,
			func(r SendRecord) float64 { return safeRate(r.SpamComplaints, r.EmailsSent) }},
		{"unsubscribe", float64(totalUnsub) / float64(totalEmails), n.cfg.UnsubRateFloor,
			func(r SendRecord) float64 { return safeRate(r.Unsubscribes, r.EmailsSent) }},
		{"bounce", float64(totalBounce) / float64(totalEmails), n.cfg.BounceRateFloor,
			func(r SendRecord) float64 { return safeRate(r.Bounces, r.EmailsSent) }},
	}

	var best liquid.Bindings
	bestAffected := 0
	for _, issue := range issues {
		threshold := math.Max(issue.baseline*n.cfg.DeliverabilityRatio, issue.floor)
		affected := 0
		for _, r := range campaigns {
			if r.EmailsSent > 0 && issue.rate(r) > threshold {
				affected += r.EmailsSent
			}
		}
		if affected >= n.cfg.MinAffectedEmails && affected > bestAffected {
			bestAffected = affected
			best = liquid.Bindings{
				"issue":           issue.name,
				"threshold":       threshold * 100,
				"baseline":        issue.baseline * 100,
				"affected_emails": affected,
			}
		}
	}
	return best, best != nil
}

// revenueWarning fires when campaigns earning at or below RevenueRPERatio of
// baseline RPE collectively cover enough of the period's volume.
func (n *Narrator) revenueWarning(campaigns []SendRecord, totals FeatureAggregate) (liquid.Bindings, bool) {
	if totals.Value <= 0 || totals.TotalEmails == 0 {
		return nil, false
	}
	cutoff := totals.Value * n.cfg.RevenueRPERatio
	affected := 0
	for _, r := range campaigns {
		if r.EmailsSent > 0 && r.RevenuePerEmail() <= cutoff {
			affected += r.EmailsSent
		}
	}
	share := float64(affected) / float64(totals.TotalEmails)
	if share < n.cfg.RevenueVolumeShare || affected < n.cfg.MinAffectedEmails {
		return nil, false
	}
	return liquid.Bindings{
		"cutoff":          n.cfg.RevenueRPERatio * 100,
		"share":           share * 100,
		"affected_emails": affected,
		"low_rpe":         cutoff,
		"baseline_rpe":    totals.Value,
	}, true
}

func (n *Narrator) qualifiesAsWin(best *FeatureStat, analysis SubjectAnalysisResult) bool {
	lift := *best.LiftVsBaseline
	if lift >= n.cfg.WinsBigLift {
		return true
	}
	if lift < n.cfg.WinsModerateLift {
		return false
	}
	if analysis.Baseline.TotalRevenue <= 0 {
		return false
	}
	return best.TotalRevenue/analysis.Baseline.TotalRevenue >= n.cfg.WinsRevenueShare
}

// bestHighlight returns the highest-lift feature across length bins and
// categories. reliableOnly restricts the pick to statistically gated features.
func bestHighlight(analysis SubjectAnalysisResult, reliableOnly bool) *FeatureStat {
	var best *FeatureStat
	consider := func(group []FeatureStat) {
		for i := range group {
			stat := &group[i]
			if !stat.Eligible || stat.LiftVsBaseline == nil || *stat.LiftVsBaseline <= 0 {
				continue
			}
			if reliableOnly && !stat.Reliable {
				continue
			}
			if best == nil || *stat.LiftVsBaseline > *best.LiftVsBaseline {
				best = stat
			}
		}
	}
	consider(analysis.LengthBins)
	consider(analysis.Categories)
	return best
}

func (n *Narrator) render(insight *SubjectLineInsight, headline, summary, body string, bindings liquid.Bindings) {
	insight.Headline = n.renderOne(headline, bindings)
	insight.Summary = n.renderOne(summary, bindings)
	insight.Paragraph = n.renderOne(body, bindings)
}

func (n *Narrator) renderOne(tmpl string, bindings liquid.Bindings) string {
	out, err := n.engine.ParseAndRenderString(tmpl, bindings)
	if err != nil {
		// Templates are compile-time constants; a render error means a binding
		// slipped out of sync. Degrade to the raw template rather than panic.
		return tmpl
	}
	return out
}

// groupThousands inserts commas into the integer part of a formatted number.
func groupThousands(s string) string {
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + frac
}

func safeRate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
