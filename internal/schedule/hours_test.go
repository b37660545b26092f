package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestBusinessHoursValidate(t *testing.T) {
	valid := BusinessHours{BusinessID: "b1", Weekday: time.Monday, OpenMinutes: 480, CloseMinutes: 1080}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid hours rejected: %v", err)
	}

	cases := []BusinessHours{
		{Weekday: time.Monday, OpenMinutes: 600, CloseMinutes: 600},  // open == close
		{Weekday: time.Monday, OpenMinutes: 700, CloseMinutes: 600},  // open > close
		{Weekday: time.Monday, OpenMinutes: -1, CloseMinutes: 600},   // negative
		{Weekday: time.Monday, OpenMinutes: 0, CloseMinutes: 1440},   // past end of day
		{Weekday: time.Weekday(7), OpenMinutes: 480, CloseMinutes: 600},
	}
	for i, h := range cases {
		if err := h.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestResolveWindowExplicitRowWins(t *testing.T) {
	ws := NewWeekSchedule([]BusinessHours{
		{Weekday: time.Monday, OpenMinutes: 540, CloseMinutes: 720},
	})
	w, open := ws.ResolveWindow(time.Monday, false)
	if !open || w.OpenMinutes != 540 || w.CloseMinutes != 720 {
		t.Fatalf("ResolveWindow = %+v open=%v", w, open)
	}
}

func TestResolveWindowUnconfiguredBusinessGetsDefaults(t *testing.T) {
	ws := NewWeekSchedule(nil)

	w, open := ws.ResolveWindow(time.Wednesday, false)
	if !open || w.OpenMinutes != DefaultOpenMinutes || w.CloseMinutes != DefaultCloseMinutes {
		t.Fatalf("weekday default = %+v open=%v", w, open)
	}
	if _, open := ws.ResolveWindow(time.Saturday, false); open {
		t.Error("Saturday should be closed by default")
	}
	if _, open := ws.ResolveWindow(time.Sunday, false); open {
		t.Error("Sunday should be closed by default")
	}
}

func TestResolveWindowMissingDayIsClosedOnceConfigured(t *testing.T) {
	ws := NewWeekSchedule([]BusinessHours{
		{Weekday: time.Monday, OpenMinutes: 480, CloseMinutes: 720},
	})
	if _, open := ws.ResolveWindow(time.Tuesday, false); open {
		t.Fatal("missing weekday on a configured business must be closed")
	}
}

func TestResolveWindowDefaultFillDaysRestoresLegacyBehavior(t *testing.T) {
	ws := NewWeekSchedule([]BusinessHours{
		{Weekday: time.Monday, OpenMinutes: 480, CloseMinutes: 720},
	})
	w, open := ws.ResolveWindow(time.Tuesday, true)
	if !open || w.OpenMinutes != DefaultOpenMinutes {
		t.Fatalf("per-day fill should apply defaults, got %+v open=%v", w, open)
	}
	// Weekends stay closed even with fill enabled.
	if _, open := ws.ResolveWindow(time.Sunday, true); open {
		t.Error("Sunday must stay closed under per-day fill")
	}
}

func TestErrInvalidWindowIsSentinel(t *testing.T) {
	err := DayWindow{OpenMinutes: 700, CloseMinutes: 600}.Validate()
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}
