package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSchedulingTasks(t *testing.T) {
	_, router := newTestApi(t, nil)
	userTok := loginAs(t, router, "alice@example.com")
	devTok := newDevice(t, router, userTok, "dev1")

	// 没有任务时返回{}
	w := do(t, router, http.MethodGet, "/api/v1/devices/dev1/scheduler/next_action", devTok, nil)
	expectCode(t, w, http.StatusOK)
	if w.Body.String() != "{}" {
		t.Fatalf("next_action: %s", w.Body.String())
	}

	tasks := []gin.H{
		{"type": "daily", "action": "turn_on", "moment": "2021-01-01T09:00:00Z", "weekdays": []int{5, 6}},
		{"type": "one_shot", "action": "turn_off", "moment": "2021-07-17T20:00:00Z"},
		{"type": "one_shot", "action": "turn_on", "moment": "2021-07-16T20:00:00Z"},
	}
	w = do(t, router, http.MethodPost, "/api/v1/devices/dev1/scheduler/tasks", userTok, tasks)
	expectCode(t, w, http.StatusOK)

	w = do(t, router, http.MethodGet, "/api/v1/devices/dev1/scheduler/tasks", devTok, nil)
	expectCode(t, w, http.StatusOK)
	var stored []struct {
		Type     string `json:"type"`
		Weekdays []int  `json:"weekdays"`
	}
	decode(t, w, &stored)
	if len(stored) != 3 || stored[0].Type != "daily" || len(stored[0].Weekdays) != 2 || stored[1].Type != "one_shot" {
		t.Fatalf("tasks: %+v", stored)
	}

	w = do(t, router, http.MethodGet, "/api/v1/devices/dev1/scheduler/next_action", devTok, nil)
	expectCode(t, w, http.StatusOK)
	var next struct {
		Action string    `json:"action"`
		Moment time.Time `json:"moment"`
	}
	decode(t, w, &next)
	if next.Action != "turn_off" || !next.Moment.Equal(time.Date(2021, 7, 17, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("next: %+v", next)
	}

	// 整体替换，只剩每日任务
	w = do(t, router, http.MethodPost, "/api/v1/devices/dev1/scheduler/tasks", userTok, tasks[:1])
	expectCode(t, w, http.StatusOK)
	w = do(t, router, http.MethodGet, "/api/v1/devices/dev1/scheduler/next_action", devTok, nil)
	expectCode(t, w, http.StatusOK)
	decode(t, w, &next)
	if next.Action != "turn_on" || !next.Moment.Equal(time.Date(2021, 7, 18, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("next: %+v", next)
	}
}

func TestSchedulingErrors(t *testing.T) {
	_, router := newTestApi(t, nil)
	userTok := loginAs(t, router, "alice@example.com")
	newDevice(t, router, userTok, "dev1")

	var res struct {
		Message          string   `json:"message"`
		ValidationErrors []string `json:"validation_errors"`
	}

	w := do(t, router, http.MethodPost, "/api/v1/devices/other/scheduler/tasks", userTok, []gin.H{})
	expectCode(t, w, http.StatusBadRequest)
	decode(t, w, &res)
	if res.Message != deviceNotFoundMessage {
		t.Fatalf("message: %q", res.Message)
	}

	w = do(t, router, http.MethodGet, "/api/v1/devices/other/scheduler/next_action", userTok, nil)
	expectCode(t, w, http.StatusBadRequest)

	w = do(t, router, http.MethodPost, "/api/v1/devices/dev1/scheduler/tasks", userTok, []gin.H{
		{"type": "daily", "action": "turn_on", "moment": "2021-01-01T09:00:00Z", "weekdays": []int{}},
		{"type": "one_shot", "moment": "2021-07-17T20:00:00Z"},
	})
	expectCode(t, w, http.StatusBadRequest)
	res.ValidationErrors = nil
	decode(t, w, &res)
	if len(res.ValidationErrors) != 2 ||
		res.ValidationErrors[0] != "tasks[0].weekdays must not be empty" ||
		res.ValidationErrors[1] != "tasks[1].action must not be empty" {
		t.Fatalf("violations: %v", res.ValidationErrors)
	}

	w = do(t, router, http.MethodPost, "/api/v1/devices/dev1/scheduler/tasks", userTok, []gin.H{
		{"type": "weekly", "action": "turn_on", "moment": "2021-01-01T09:00:00Z"},
	})
	expectCode(t, w, http.StatusBadRequest)

	w = do(t, router, http.MethodPost, "/api/v1/devices/dev1/scheduler/tasks", userTok, `{"type": "daily"}`)
	expectCode(t, w, http.StatusBadRequest)
}

func TestSchedulingViolationsAcrossTypes(t *testing.T) {
	_, router := newTestApi(t, nil)
	userTok := loginAs(t, router, "alice@example.com")
	newDevice(t, router, userTok, "dev1")

	w := do(t, router, http.MethodPost, "/api/v1/devices/dev1/scheduler/tasks", userTok, []gin.H{
		{"type": "weekly", "action": "turn_on", "moment": "2021-01-01T09:00:00Z"},
		{"type": "daily", "action": "turn_on", "moment": "2021-01-01T09:00:00Z", "weekdays": []int{}},
	})
	expectCode(t, w, http.StatusBadRequest)
	var res struct {
		ValidationErrors []string `json:"validation_errors"`
	}
	decode(t, w, &res)
	if len(res.ValidationErrors) != 2 || res.ValidationErrors[1] != "tasks[1].weekdays must not be empty" {
		t.Fatalf("violations: %v", res.ValidationErrors)
	}

	// 不属于用户的设备先报设备错误
	w = do(t, router, http.MethodPost, "/api/v1/devices/other/scheduler/tasks", userTok, []gin.H{
		{"type": "weekly", "action": "turn_on", "moment": "2021-01-01T09:00:00Z"},
	})
	expectCode(t, w, http.StatusBadRequest)
	var notFound struct {
		Message string `json:"message"`
	}
	decode(t, w, &notFound)
	if notFound.Message != deviceNotFoundMessage {
		t.Fatalf("message: %q", notFound.Message)
	}
}
