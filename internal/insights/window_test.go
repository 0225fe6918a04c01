package insights

import (
	"testing"
)

func TestSelectWindowEmptyRecords(t *testing.T) {
	now := date(2025, 6, 15)
	window := SelectWindow(nil, now)

	if !window.End.Equal(now) {
		t.Errorf("end = %v, want %v", window.End, now)
	}
	if window.Days != WindowMaxDays {
		t.Errorf("days = %d, want %d", window.Days, WindowMaxDays)
	}
	if window.IsCapped {
		t.Error("default window must not be marked capped")
	}
}

func TestSelectWindowAnchorsToLatestSend(t *testing.T) {
	// The data dump is stale: the latest record is months before "now".
	latest := date(2025, 3, 10)
	records := []SendRecord{campaignRecord(latest, 10000, 500)}
	window := SelectWindow(records, date(2025, 6, 15))

	if !window.End.Equal(latest) {
		t.Errorf("end = %v, want the latest send date %v", window.End, latest)
	}
	// Volume target met on day one, so the 90-day floor applies.
	if window.Days != WindowMinDays {
		t.Errorf("days = %d, want %d", window.Days, WindowMinDays)
	}
	if window.SendsCaptured != 10000 {
		t.Errorf("sends captured = %d, want 10000", window.SendsCaptured)
	}
	if window.IsCapped {
		t.Error("window must not be capped")
	}
}

func TestSelectWindowWalksBackToVolumeTarget(t *testing.T) {
	end := date(2025, 6, 15)
	records := []SendRecord{
		campaignRecord(end, 2000, 100),
		campaignRecord(end.AddDate(0, 0, -100), 2000, 100),
		campaignRecord(end.AddDate(0, 0, -200), 2000, 100),
		campaignRecord(end.AddDate(0, 0, -300), 2000, 100), // past the target, not reached
	}
	window := SelectWindow(records, end)

	if window.Days != 200 {
		t.Errorf("days = %d, want 200", window.Days)
	}
	if window.SendsCaptured != 6000 {
		t.Errorf("sends captured = %d, want 6000", window.SendsCaptured)
	}
	if window.IsCapped {
		t.Error("window must not be capped")
	}
}

func TestSelectWindowCapsAtMaxDays(t *testing.T) {
	end := date(2025, 6, 15)
	records := []SendRecord{
		campaignRecord(end, 10, 1),
		campaignRecord(end.AddDate(0, 0, -400), 10, 1),
	}
	window := SelectWindow(records, end)

	if !window.IsCapped {
		t.Fatal("sparse history past a year must cap the window")
	}
	if window.Days != WindowMaxDays {
		t.Errorf("days = %d, want %d", window.Days, WindowMaxDays)
	}
	if window.SendsCaptured != 10 {
		t.Errorf("sends captured = %d, want 10 (old record outside the cap)", window.SendsCaptured)
	}
}

func TestDateRangeContainsAndFilter(t *testing.T) {
	window := DateRange{Start: date(2025, 6, 1), End: date(2025, 6, 30)}
	records := []SendRecord{
		campaignRecord(date(2025, 6, 15), 100, 10),
		campaignRecord(date(2025, 5, 31), 100, 10),
		campaignRecord(date(2025, 6, 1), 100, 10),
		campaignRecord(date(2025, 7, 1), 100, 10),
		campaignRecord(date(2025, 6, 30), 100, 10),
	}
	got := FilterRecords(records, window)

	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].SentDate.Before(got[i-1].SentDate) {
			t.Errorf("records not sorted ascending: %v after %v", got[i].SentDate, got[i-1].SentDate)
		}
	}
	if !got[0].SentDate.Equal(date(2025, 6, 1)) || !got[2].SentDate.Equal(date(2025, 6, 30)) {
		t.Errorf("window must be inclusive on both ends: %v", got)
	}
}
