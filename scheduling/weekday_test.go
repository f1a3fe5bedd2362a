package scheduling

import (
	"testing"
	"time"
)

func TestWeekdayOf(t *testing.T) {
	// 2021-07-12 是周一
	start := time.Date(2021, 7, 12, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		if got := WeekdayOf(day); got != Weekday(i) {
			t.Fatalf("WeekdayOf(%s) = %v, want %v", day.Format("2006-01-02"), got, Weekday(i))
		}
	}
}

func TestNextAfter(t *testing.T) {
	cases := map[Weekday]Weekday{
		Monday:   Tuesday,
		Friday:   Saturday,
		Saturday: Sunday,
		Sunday:   Monday,
	}
	for from, want := range cases {
		if got := NextAfter(from); got != want {
			t.Fatalf("NextAfter(%v) = %v, want %v", from, got, want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		from, to Weekday
		want     int
	}{
		{Monday, Monday, 0},
		{Monday, Tuesday, 1},
		{Saturday, Sunday, 1},
		{Sunday, Monday, 1},
		{Friday, Tuesday, 4},
		{Tuesday, Monday, 6},
	}
	for _, c := range cases {
		if got := DaysBetween(c.from, c.to); got != c.want {
			t.Fatalf("DaysBetween(%v, %v) = %d, want %d", c.from, c.to, got, c.want)
		}
	}
}

func TestWeekdayString(t *testing.T) {
	if Sunday.String() != "Sunday" {
		t.Fatalf("unexpected %q", Sunday.String())
	}
	if Weekday(9).String() != "Weekday(9)" {
		t.Fatalf("unexpected %q", Weekday(9).String())
	}
}
