package insights

import (
	"sort"
	"time"
)

const dayFormat = "2006-01-02"

// weekStart returns the Monday 00:00 UTC of the week containing t. Monday is
// the week start regardless of locale.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// monthStart returns the first of the month containing t, at 00:00 UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func periodStart(t time.Time, g Granularity) time.Time {
	if g == GranularityMonth {
		return monthStart(t)
	}
	return weekStart(t)
}

func nextPeriod(start time.Time, g Granularity) time.Time {
	if g == GranularityMonth {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 7)
}

func periodLabel(start time.Time, g Granularity) string {
	if g == GranularityMonth {
		return start.Format("Jan 2006")
	}
	return "Week of " + start.Format("Jan 2")
}

// AggregateByPeriod groups records into calendar-aligned buckets at the given
// granularity and fills every missing period between the first and last
// observed period with an explicit zero bucket, so the returned series is
// contiguous and sorted ascending. A bucket is complete when its end falls at
// or before the boundary time.
func AggregateByPeriod(records []SendRecord, g Granularity, boundary time.Time) []PeriodBucket {
	if len(records) == 0 {
		return nil
	}
	byStart := accumulate(records, g)

	var first, last time.Time
	for start := range byStart {
		if first.IsZero() || start.Before(first) {
			first = start
		}
		if last.IsZero() || start.After(last) {
			last = start
		}
	}
	return ladder(byStart, first, last, g, boundary)
}

// AggregateRange is the range-bounded variant: it synthesizes the full period
// ladder strictly inside [start, end], including zero buckets for periods with
// no records, and uses end as the completeness boundary.
func AggregateRange(records []SendRecord, g Granularity, start, end time.Time) []PeriodBucket {
	if end.Before(start) {
		return nil
	}
	windowed := make([]SendRecord, 0, len(records))
	for _, r := range records {
		if !r.SentDate.Before(start) && !r.SentDate.After(end) {
			windowed = append(windowed, r)
		}
	}
	byStart := accumulate(windowed, g)

	first := periodStart(start, g)
	if first.Before(start.UTC().Truncate(24 * time.Hour)) {
		// Only whole periods inside the window.
		first = nextPeriod(first, g)
	}
	last := periodStart(end, g)
	if last.Before(first) {
		return nil
	}
	return ladder(byStart, first, last, g, end)
}

type bucketAccumulator struct {
	bucket     PeriodBucket
	activeDays map[string]struct{}
}

func accumulate(records []SendRecord, g Granularity) map[time.Time]*bucketAccumulator {
	byStart := make(map[time.Time]*bucketAccumulator)
	for _, r := range records {
		start := periodStart(r.SentDate, g)
		acc, ok := byStart[start]
		if !ok {
			acc = &bucketAccumulator{
				bucket:     PeriodBucket{PeriodStart: start, Label: periodLabel(start, g)},
				activeDays: make(map[string]struct{}),
			}
			byStart[start] = acc
		}
		b := &acc.bucket
		b.TotalRevenue += r.Revenue
		b.TotalEmails += r.EmailsSent
		b.TotalOpens += r.UniqueOpens
		b.TotalClicks += r.UniqueClicks
		b.TotalOrders += r.TotalOrders
		b.Unsubscribes += r.Unsubscribes
		b.SpamComplaints += r.SpamComplaints
		b.Bounces += r.Bounces
		if r.Channel == ChannelFlow {
			b.FlowRevenue += r.Revenue
		} else {
			b.CampaignRevenue += r.Revenue
			b.CampaignSends++
		}
		acc.activeDays[r.SentDate.UTC().Format(dayFormat)] = struct{}{}
	}
	return byStart
}

func ladder(byStart map[time.Time]*bucketAccumulator, first, last time.Time, g Granularity, boundary time.Time) []PeriodBucket {
	var out []PeriodBucket
	for start := first; !start.After(last); start = nextPeriod(start, g) {
		var b PeriodBucket
		if acc, ok := byStart[start]; ok {
			b = acc.bucket
			b.DaysWithActivity = sortedDays(acc.activeDays)
		} else {
			b = PeriodBucket{PeriodStart: start, Label: periodLabel(start, g)}
		}
		b.IsComplete = !nextPeriod(start, g).After(boundary)
		out = append(out, b)
	}
	return out
}

func sortedDays(days map[string]struct{}) []string {
	out := make([]string, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// completeBuckets returns only the buckets whose period has fully elapsed.
// Every statistic that assumes full periods (reliability, gaps, correlations)
// must run on these, never on in-progress buckets.
func completeBuckets(buckets []PeriodBucket) []PeriodBucket {
	out := make([]PeriodBucket, 0, len(buckets))
	for _, b := range buckets {
		if b.IsComplete {
			out = append(out, b)
		}
	}
	return out
}
