package scheduling

import (
	"testing"
	"time"
)

func TestWithinWorkingHours(t *testing.T) {
	hours := []WorkingInterval{
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 13 * 60},
		{Weekday: time.Monday, StartMinute: 13 * 60, EndMinute: 17 * 60},
		{Weekday: time.Tuesday, StartMinute: 9 * 60, EndMinute: 12 * 60},
		{Weekday: time.Tuesday, StartMinute: 14 * 60, EndMinute: 18 * 60},
		{Weekday: time.Friday, StartMinute: 20 * 60, EndMinute: 24 * 60},
	}
	mon := func(h, m int) time.Time { return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC) }
	tue := func(h, m int) time.Time { return time.Date(2026, time.March, 3, h, m, 0, 0, time.UTC) }
	fri := func(h, m int) time.Time { return time.Date(2026, time.March, 6, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", mon(9, 0), mon(9, 30), true},
		{"ends at close", mon(16, 30), mon(17, 0), true},
		{"before open", mon(8, 0), mon(8, 30), false},
		{"straddles open", mon(8, 45), mon(9, 15), false},
		{"spans touching intervals", mon(12, 30), mon(13, 30), true},
		{"spans lunch gap", tue(11, 30), tue(14, 30), false},
		{"afternoon block", tue(14, 0), tue(15, 0), true},
		{"day without hours", time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC), time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC), false},
		{"ends at midnight", fri(23, 0), fri(24, 0), true},
		{"crosses midnight", fri(23, 30), fri(24, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinWorkingHours(hours, tt.start, tt.end, time.UTC); got != tt.want {
				t.Errorf("WithinWorkingHours = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithinWorkingHours_UsesClinicTimeZone(t *testing.T) {
	loc := time.FixedZone("CLT", -3*60*60)
	hours := []WorkingInterval{{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60}}

	// 12:00 UTC is 09:00 local.
	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	if !WithinWorkingHours(hours, start, start.Add(30*time.Minute), loc) {
		t.Error("09:00 local should be inside working hours")
	}
	// 10:00 UTC is 07:00 local.
	early := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	if WithinWorkingHours(hours, early, early.Add(30*time.Minute), loc) {
		t.Error("07:00 local should be outside working hours")
	}
}
