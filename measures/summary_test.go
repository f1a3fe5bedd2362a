package measures

import (
	"testing"
	"time"

	"github.com/turnon/wattwise/store/common"
)

func TestSummarizeEmpty(t *testing.T) {
	to := time.Date(2021, 7, 17, 19, 53, 16, 0, time.UTC)
	got := Summarize(nil, to.Add(-5*time.Minute), to)
	if got == nil || len(got) != 0 {
		t.Fatalf("Summarize = %v", got)
	}
	if got := Summarize(nil, to, to); len(got) != 0 {
		t.Fatalf("Summarize zero window = %v", got)
	}
}

func TestSummarizeBuckets(t *testing.T) {
	to := time.Date(2021, 7, 17, 19, 53, 20, 0, time.UTC)
	from := to.Add(-5 * time.Minute) // 每段12秒
	ms := []common.Measure{
		{Timestamp: from.Add(1 * time.Second), Voltage: 220.571, Current: 5.432},
		{Timestamp: from.Add(5 * time.Second), Voltage: 220.424, Current: 5.555},
		{Timestamp: from.Add(30 * time.Second), Voltage: 219.4, Current: 5.512},
		{Timestamp: to, Voltage: 218.93, Current: 5.628},
		{Timestamp: from.Add(-time.Second), Voltage: 1000, Current: 1000},
	}

	got := Summarize(ms, from, to)
	if len(got) != 3 {
		t.Fatalf("Summarize = %+v", got)
	}

	first := got[0]
	if !first.Timestamp.Equal(from.Add(12*time.Second)) {
		t.Fatalf("first timestamp = %s", first.Timestamp)
	}
	// (220.571+220.424)/2 = 220.4975, (5.432+5.555)/2 = 5.4935
	if first.Voltage != 220.5 || first.Current != 5.49 {
		t.Fatalf("first = %+v", first)
	}
	if first.Power != 1210.55 {
		t.Fatalf("first power = %v", first.Power)
	}

	if !got[1].Timestamp.Equal(from.Add(36*time.Second)) || got[1].Voltage != 219.4 {
		t.Fatalf("second = %+v", got[1])
	}
	if !got[2].Timestamp.Equal(to) || got[2].Current != 5.63 {
		t.Fatalf("last = %+v", got[2])
	}
}

func TestSummarizeWindowShorterThanBuckets(t *testing.T) {
	to := time.Date(2021, 7, 17, 19, 53, 16, 0, time.UTC)
	from := to.Add(-10 * time.Nanosecond)
	got := Summarize([]common.Measure{{Timestamp: to, Voltage: 220, Current: 1}}, from, to)
	if got == nil || len(got) != 0 {
		t.Fatalf("Summarize = %v", got)
	}
}
