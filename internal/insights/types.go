// Package insights computes decision-ready analytics over historical email-send
// records: revenue reliability scoring, subject-line lift analysis with
// hypothesis-test gating, day-of-week recommendations, volume guidance, and
// sending-gap loss estimation. All entry points are pure functions of their
// inputs, with no module-level caches and no I/O.
package insights

import (
	"sort"
	"time"
)

// Channel discriminates the two send streams a record can belong to.
type Channel string

const (
	ChannelCampaign Channel = "campaign"
	ChannelFlow     Channel = "flow"
)

// Granularity selects the calendar bucketing step.
type Granularity string

const (
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// SendRecord is one day-resolution send event with its outcome counters.
// Records arrive pre-validated from the ingestion layer: counters are
// non-negative and dates are parseable. Rates are always derived, never stored.
type SendRecord struct {
	SentDate       time.Time `json:"sent_date"`
	EmailsSent     int       `json:"emails_sent"`
	UniqueOpens    int       `json:"unique_opens"`
	UniqueClicks   int       `json:"unique_clicks"`
	TotalOrders    int       `json:"total_orders"`
	Revenue        float64   `json:"revenue"`
	Unsubscribes   int       `json:"unsubscribes_count"`
	SpamComplaints int       `json:"spam_complaints_count"`
	Bounces        int       `json:"bounces_count"`
	SubjectText    string    `json:"subject_text,omitempty"`
	SegmentTags    []string  `json:"segment_tags,omitempty"`
	Channel        Channel   `json:"channel"`
}

// OpenRate returns unique opens per email sent, zero when nothing was sent.
func (r SendRecord) OpenRate() float64 {
	if r.EmailsSent == 0 {
		return 0
	}
	return float64(r.UniqueOpens) / float64(r.EmailsSent)
}

// ClickRate returns unique clicks per email sent.
func (r SendRecord) ClickRate() float64 {
	if r.EmailsSent == 0 {
		return 0
	}
	return float64(r.UniqueClicks) / float64(r.EmailsSent)
}

// RevenuePerEmail returns revenue per email sent.
func (r SendRecord) RevenuePerEmail() float64 {
	if r.EmailsSent == 0 {
		return 0
	}
	return r.Revenue / float64(r.EmailsSent)
}

// PeriodBucket is one calendar-aligned aggregate period. The aggregator
// synthesizes a bucket for every period between the first and last observed
// period, so a series never has holes: a zero bucket means "genuinely zero
// activity," not "no data collected."
type PeriodBucket struct {
	PeriodStart      time.Time `json:"period_start"`
	Label            string    `json:"label"`
	TotalRevenue     float64   `json:"total_revenue"`
	CampaignRevenue  float64   `json:"campaign_revenue"`
	FlowRevenue      float64   `json:"flow_revenue"`
	CampaignSends    int       `json:"campaign_send_count"`
	TotalEmails      int       `json:"total_emails"`
	TotalOpens       int       `json:"total_opens"`
	TotalClicks      int       `json:"total_clicks"`
	TotalOrders      int       `json:"total_orders"`
	Unsubscribes     int       `json:"unsubscribes"`
	SpamComplaints   int       `json:"spam_complaints"`
	Bounces          int       `json:"bounces"`
	DaysWithActivity []string  `json:"days_with_activity"`
	IsComplete       bool      `json:"is_complete"`
}

// DateRange is the analysis window chosen by SelectWindow.
type DateRange struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Days          int       `json:"days"`
	SendsCaptured int       `json:"sends_captured"`
	IsCapped      bool      `json:"is_capped"`
}

// Contains reports whether t falls inside the range (inclusive on both ends,
// day resolution).
func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start) && !t.After(d.End)
}

// FilterRecords returns the records whose send date falls inside the range,
// sorted ascending by date.
func FilterRecords(records []SendRecord, window DateRange) []SendRecord {
	out := make([]SendRecord, 0, len(records))
	for _, r := range records {
		if window.Contains(r.SentDate) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentDate.Before(out[j].SentDate) })
	return out
}
