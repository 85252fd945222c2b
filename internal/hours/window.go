// Package hours decides whether supervisor notifications go out now or wait
// for the next operating window.
package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Window is a daily operating window in a fixed location. Start > End wraps
// past midnight; Start == End means always open.
type Window struct {
	Start    int // minutes after midnight
	End      int
	Location *time.Location
}

func NewWindow(start, end string, loc *time.Location) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Window{Start: s, End: e, Location: loc}, nil
}

// AlwaysOpen never defers anything.
func AlwaysOpen() Window {
	return Window{Location: time.UTC}
}

// ParseClock reads "HH:MM" into minutes after midnight.
func ParseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h*60 + m, nil
}

func (w Window) Contains(t time.Time) bool {
	if w.Start == w.End {
		return true
	}
	m := w.minuteOf(t)
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

// NextOpen returns t when the window is open, otherwise the next opening.
func (w Window) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	local := t.In(w.location())
	m := w.minuteOf(t)
	wait := w.Start - m
	if wait <= 0 {
		wait += minutesPerDay
	}
	return local.Truncate(time.Minute).Add(time.Duration(wait) * time.Minute)
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

func (w Window) minuteOf(t time.Time) int {
	local := t.In(w.location())
	return local.Hour()*60 + local.Minute()
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}
