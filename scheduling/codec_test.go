package scheduling

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCodecRoundTripResolvesTheSame(t *testing.T) {
	tasks := []Task{
		&DailyTask{Action: ActionTurnOn, Moment: time.Date(2021, 1, 1, 7, 45, 30, 500, time.UTC), Weekdays: []Weekday{Monday, Thursday}},
		&OneShotTask{Action: ActionTurnOff, Moment: time.Date(2021, 7, 18, 6, 0, 0, 0, time.UTC)},
		&OneShotTask{Action: ActionTurnOn, Moment: time.Date(2021, 7, 16, 6, 0, 0, 0, time.UTC)},
	}

	data, err := EncodeTasks(tasks)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeTasks(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(tasks) {
		t.Fatalf("decoded %d tasks", len(decoded))
	}

	start := time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 96; i++ {
		now := start.Add(time.Duration(i) * 45 * time.Minute)
		want, got := Next(now, tasks), Next(now, decoded)
		if (want == nil) != (got == nil) {
			t.Fatalf("now %s: want %v, got %v", now, want, got)
		}
		if want != nil && (want.Action != got.Action || !want.Moment.Equal(got.Moment)) {
			t.Fatalf("now %s: want %+v, got %+v", now, want, got)
		}
	}
}

func TestDecodeTasksTagged(t *testing.T) {
	data := []byte(`[
		{"type": "daily", "action": "turn_on", "moment": "2021-07-17T09:00:00Z", "weekdays": [0, 6]},
		{"type": "one_shot", "action": "turn_off", "moment": "2021-07-17T20:00:00Z"}
	]`)
	tasks, err := DecodeTasks(data)
	if err != nil {
		t.Fatal(err)
	}
	daily, ok := tasks[0].(*DailyTask)
	if !ok || len(daily.Weekdays) != 2 || daily.Weekdays[1] != Sunday {
		t.Fatalf("unexpected daily task %+v", tasks[0])
	}
	if tasks[1].Kind() != KindOneShot {
		t.Fatalf("unexpected kind %q", tasks[1].Kind())
	}
}

func TestDecodeTasksUnknownType(t *testing.T) {
	data := []byte(`[{"type": "weekly", "action": "turn_on"}, {"action": "turn_off"}]`)
	_, err := DecodeTasks(data)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Violations) != 2 || !strings.Contains(verr.Violations[0], `"weekly"`) {
		t.Fatalf("violations = %v", verr.Violations)
	}
}

func TestDecodeTasksMalformed(t *testing.T) {
	if _, err := DecodeTasks([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error")
	}
}
