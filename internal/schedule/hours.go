package schedule

import "time"

// Default window applied when a business has not configured any hours:
// Monday through Friday 08:00-18:00, closed on weekends.
const (
	DefaultOpenMinutes  = 8 * 60
	DefaultCloseMinutes = 18 * 60
)

// DayWindow is an open/close pair in minutes since local midnight.
type DayWindow struct {
	OpenMinutes  int
	CloseMinutes int
}

// Validate enforces open < close within a single day.
func (w DayWindow) Validate() error {
	if w.OpenMinutes < 0 || w.CloseMinutes >= MinutesPerDay {
		return ErrInvalidWindow
	}
	if w.OpenMinutes >= w.CloseMinutes {
		return ErrInvalidWindow
	}
	return nil
}

// BusinessHours is one configured weekday window for a business.
type BusinessHours struct {
	BusinessID   string
	Weekday      time.Weekday
	OpenMinutes  int
	CloseMinutes int
}

// Validate checks the weekday and window ranges.
func (h BusinessHours) Validate() error {
	if h.Weekday < time.Sunday || h.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	return DayWindow{OpenMinutes: h.OpenMinutes, CloseMinutes: h.CloseMinutes}.Validate()
}

// WeekSchedule holds the configured windows of one business for one week.
// A weekday without an entry is closed, subject to the fallback rules in
// ResolveWindow.
type WeekSchedule struct {
	windows map[time.Weekday]DayWindow
}

// NewWeekSchedule builds a schedule from configured rows.
func NewWeekSchedule(rows []BusinessHours) *WeekSchedule {
	ws := &WeekSchedule{windows: make(map[time.Weekday]DayWindow, len(rows))}
	for _, row := range rows {
		ws.windows[row.Weekday] = DayWindow{OpenMinutes: row.OpenMinutes, CloseMinutes: row.CloseMinutes}
	}
	return ws
}

// Configured reports whether the business saved any hours at all.
func (ws *WeekSchedule) Configured() bool {
	return len(ws.windows) > 0
}

// Window returns the explicit window for a weekday, if one was saved.
func (ws *WeekSchedule) Window(day time.Weekday) (DayWindow, bool) {
	w, ok := ws.windows[day]
	return w, ok
}

// ResolveWindow applies the hours policy for one weekday.
//
// A saved row always wins. When the business has saved no hours at all, the
// Mon-Fri 08:00-18:00 default applies. Once any row exists, a missing
// weekday means explicitly closed — unless defaultFillDays is set, which
// restores the legacy per-missing-day fill behavior.
func (ws *WeekSchedule) ResolveWindow(day time.Weekday, defaultFillDays bool) (DayWindow, bool) {
	if w, ok := ws.windows[day]; ok {
		return w, true
	}
	if ws.Configured() && !defaultFillDays {
		return DayWindow{}, false
	}
	return defaultWindow(day)
}

func defaultWindow(day time.Weekday) (DayWindow, bool) {
	if day == time.Saturday || day == time.Sunday {
		return DayWindow{}, false
	}
	return DayWindow{OpenMinutes: DefaultOpenMinutes, CloseMinutes: DefaultCloseMinutes}, true
}
