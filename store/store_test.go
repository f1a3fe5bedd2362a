package store

import (
	"context"
	"testing"
	"time"

	"github.com/turnon/wattwise/store/common"
)

func TestNewUnknownType(t *testing.T) {
	if _, err := New(context.Background(), map[string]any{"type": "redis"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSqlite(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, map[string]any{"type": "sqlite", "url": ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if err := s.Devices().Create(ctx, common.Device{DeviceID: "d1", Name: "lamp"}, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Measures().Create(ctx, "d1", "u1", []common.Measure{{Timestamp: time.Now(), Voltage: 1, Current: 2}}); err != nil {
		t.Fatal(err)
	}
}

func TestNewUnknownMeasuresType(t *testing.T) {
	_, err := New(context.Background(), map[string]any{"type": "sqlite", "url": ":memory:"}, map[string]any{"type": "influx"})
	if err == nil {
		t.Fatal("expected error")
	}
}
