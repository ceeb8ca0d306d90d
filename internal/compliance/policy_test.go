package compliance

import (
	"errors"
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("加载时区 %s 失败: %v", name, err)
	}
	return loc
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"AM", PeriodAM, false},
		{"pm", PeriodPM, false},
		{" am ", PeriodAM, false},
		{"FULL", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParsePeriod(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Errorf("ParsePeriod(%q) 期望 ErrInvalidPeriod，实际: %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParsePeriod(%q)=%q,%v 期望 %q", tc.in, got, err, tc.want)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:30", NewClock(9, 30, 0), false},
		{"09:30:15", NewClock(9, 30, 15), false},
		{"10:00:00.000000", NewClock(10, 0, 0), false},
		{"23:59:59", NewClock(23, 59, 59), false},
		{"24:00", 0, true},
		{"9", 0, true},
		{"aa:bb", 0, true},
		{"10:60", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) 期望报错", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseClock(%q)=%v,%v 期望 %v", tc.in, got, err, tc.want)
		}
	}
}

func TestClockString(t *testing.T) {
	if s := NewClock(6, 5, 9).String(); s != "06:05:09" {
		t.Errorf("期望 06:05:09，实际 %s", s)
	}
}

func TestWindowBoundaries(t *testing.T) {
	tests := []struct {
		period Period
		clock  Clock
		want   bool
	}{
		{PeriodAM, NewClock(5, 59, 59), false},
		{PeriodAM, NewClock(6, 0, 0), true},
		{PeriodAM, NewClock(10, 0, 0), true},
		{PeriodAM, NewClock(10, 0, 1), false},
		{PeriodPM, NewClock(11, 59, 59), false},
		{PeriodPM, NewClock(12, 0, 0), true},
		{PeriodPM, NewClock(15, 0, 0), true},
		{PeriodPM, NewClock(15, 0, 1), false},
		{Period("EVE"), NewClock(8, 0, 0), false},
	}
	for _, tc := range tests {
		if got := IsWithinWindow(tc.period, tc.clock); got != tc.want {
			t.Errorf("IsWithinWindow(%s,%s)=%v 期望 %v", tc.period, tc.clock, got, tc.want)
		}
	}
}

func TestWindowString(t *testing.T) {
	w, _ := WindowFor(PeriodPM)
	if w.String() != "12:00-15:00" {
		t.Errorf("期望 12:00-15:00，实际 %s", w.String())
	}
}

func TestIsWorkday(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	tests := []struct {
		date time.Time
		want bool
	}{
		{time.Date(2024, 6, 3, 9, 0, 0, 0, ny), true},  // 周一
		{time.Date(2024, 6, 7, 9, 0, 0, 0, ny), true},  // 周五
		{time.Date(2024, 6, 8, 9, 0, 0, 0, ny), false}, // 周六
		{time.Date(2024, 6, 9, 9, 0, 0, 0, ny), false}, // 周日
		// UTC 周一 02:00 在纽约仍是周日
		{time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range tests {
		if got := IsWorkday(tc.date, ny); got != tc.want {
			t.Errorf("IsWorkday(%v)=%v 期望 %v", tc.date, got, tc.want)
		}
	}
}

func TestDayOf(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	asOf := time.Date(2024, 6, 4, 2, 30, 0, 0, time.UTC) // 纽约 6/3 22:30
	if day := DayOf(asOf, ny); day.String() != "2024-06-03" {
		t.Errorf("期望 2024-06-03，实际 %s", day)
	}
	if day := DayOf(asOf, time.UTC); day.String() != "2024-06-04" {
		t.Errorf("UTC 下期望 2024-06-04，实际 %s", day)
	}
}
