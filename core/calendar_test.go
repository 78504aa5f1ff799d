package core

import (
	"testing"
	"time"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  int
	}{
		{name: "january", year: 2024, month: time.January, want: 31},
		{name: "april", year: 2024, month: time.April, want: 30},
		{name: "leap february", year: 2024, month: time.February, want: 29},
		{name: "non-leap february", year: 2023, month: time.February, want: 28},
		{name: "century non-leap", year: 1900, month: time.February, want: 28},
		{name: "quadricentennial leap", year: 2000, month: time.February, want: 29},
		{name: "december", year: 2024, month: time.December, want: 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysInMonth(tt.year, tt.month); got != tt.want {
				t.Errorf("DaysInMonth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEnumerateDays(t *testing.T) {
	days := EnumerateDays(2024, time.February)
	if len(days) != 29 {
		t.Fatalf("EnumerateDays() returned %d days, want 29", len(days))
	}
	if !days[0].Equal(Date(2024, time.February, 1)) {
		t.Errorf("first day = %v, want 2024-02-01", days[0])
	}
	if !days[28].Equal(Date(2024, time.February, 29)) {
		t.Errorf("last day = %v, want 2024-02-29", days[28])
	}
	for i := 1; i < len(days); i++ {
		if !days[i].After(days[i-1]) {
			t.Errorf("days not ascending at index %d: %v !> %v", i, days[i], days[i-1])
		}
	}

	// pure: a second call yields the same sequence
	again := EnumerateDays(2024, time.February)
	for i := range days {
		if !days[i].Equal(again[i]) {
			t.Errorf("EnumerateDays() not restartable at index %d", i)
		}
	}
}

func TestMonthsElapsed(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{name: "same day", from: Date(2024, 1, 15), to: Date(2024, 1, 15), want: 0},
		{name: "under a month", from: Date(2024, 1, 15), to: Date(2024, 2, 14), want: 0},
		{name: "exactly a month", from: Date(2024, 1, 15), to: Date(2024, 2, 15), want: 1},
		{name: "three months", from: Date(2024, 1, 1), to: Date(2024, 4, 1), want: 3},
		{name: "across year boundary", from: Date(2023, 11, 20), to: Date(2024, 2, 20), want: 3},
		{name: "to before from", from: Date(2024, 3, 15), to: Date(2024, 2, 20), want: -1},
		{name: "ignores time of day", from: Date(2024, 1, 15), to: time.Date(2024, 2, 15, 23, 59, 0, 0, time.UTC), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthsElapsed(tt.from, tt.to); got != tt.want {
				t.Errorf("MonthsElapsed() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonthsElapsedMonotonic(t *testing.T) {
	from := Date(2024, 1, 31)
	prev := MonthsElapsed(from, from)
	for _, day := range EnumerateDays(2024, time.March) {
		got := MonthsElapsed(from, day)
		if got < prev {
			t.Fatalf("MonthsElapsed() decreased at %v: %d < %d", day, got, prev)
		}
		prev = got
	}
}
