package insights

import (
	"sort"
	"time"
)

// Window selection targets. The walkback accumulates send volume from the
// most recent record until both the volume target and the day floor are met,
// or the day cap is hit.
const (
	WindowMinSends = 5000
	WindowMinDays  = 90
	WindowMaxDays  = 365
)

// SelectWindow chooses the analysis lookback window. It anchors to the latest
// observed send date rather than wall-clock now, so stale data dumps still
// analyze their own most recent activity. With no records it defaults to a
// trailing WindowMaxDays window ending now.
func SelectWindow(records []SendRecord, now time.Time) DateRange {
	if len(records) == 0 {
		end := truncateDay(now)
		return DateRange{
			Start: end.AddDate(0, 0, -WindowMaxDays),
			End:   end,
			Days:  WindowMaxDays,
		}
	}

	sorted := append([]SendRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SentDate.After(sorted[j].SentDate) })

	end := truncateDay(sorted[0].SentDate)
	capStart := end.AddDate(0, 0, -WindowMaxDays)

	start := end
	sends := 0
	capped := false
	for _, r := range sorted {
		day := truncateDay(r.SentDate)
		if day.Before(capStart) {
			start = capStart
			capped = true
			break
		}
		start = day
		sends += r.EmailsSent
		if sends >= WindowMinSends {
			break
		}
	}

	// The volume target can be met inside the 90-day floor; extend anyway so
	// short bursts of volume don't produce a myopic window.
	if floor := end.AddDate(0, 0, -WindowMinDays); !capped && start.After(floor) {
		start = floor
	}

	return DateRange{
		Start:         start,
		End:           end,
		Days:          int(end.Sub(start).Hours() / 24),
		SendsCaptured: sends,
		IsCapped:      capped,
	}
}
