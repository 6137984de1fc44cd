package engine

import (
	"sort"
	"time"
)

// DayLayout is how calendar days are keyed in storage and in DaySet.
const DayLayout = "2006-01-02"

// Day truncates t to midnight of its own calendar date, keeping its location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves a calendar day by n days, independent of DST shifts.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) StartKey() string { return DayKey(w.Start) }
func (w Window) EndKey() string   { return DayKey(w.End) }

func (w Window) Contains(t time.Time) bool {
	d := Day(t.In(w.Start.Location()))
	return !d.Before(w.Start) && !d.After(w.End)
}

func DayWindow(t time.Time) Window {
	d := Day(t)
	return Window{Start: d, End: d}
}

// WeekWindow returns the week containing t, starting on firstWeekday and
// ending six days later.
func WeekWindow(t time.Time, firstWeekday time.Weekday) Window {
	d := Day(t)
	offset := (int(d.Weekday()) - int(firstWeekday) + 7) % 7
	start := AddDays(d, -offset)
	return Window{Start: start, End: AddDays(start, 6)}
}

// MonthWindow runs from day 1 to the last day of t's calendar month.
func MonthWindow(t time.Time) Window {
	y, m, _ := t.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: start.AddDate(0, 1, -1)}
}

// DaySet is a set of calendar days keyed by DayLayout.
type DaySet map[string]struct{}

func NewDaySet(keys ...string) DaySet {
	s := make(DaySet, len(keys))
	for _, k := range keys {
		if k != "" {
			s[k] = struct{}{}
		}
	}
	return s
}

// Add records the calendar day of t and reports whether it was new.
func (s DaySet) Add(t time.Time) bool {
	k := DayKey(t)
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

func (s DaySet) Has(t time.Time) bool {
	_, ok := s[DayKey(t)]
	return ok
}

func (s DaySet) Len() int { return len(s) }

// Keys returns the days in ascending order.
func (s DaySet) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Locale is the caller's calendar: the zone their days are counted in and
// the weekday their weeks start on.
type Locale struct {
	Location     *time.Location
	FirstWeekday time.Weekday
}

// DefaultLocale counts days in UTC with Monday-first weeks.
var DefaultLocale = Locale{Location: time.UTC, FirstWeekday: time.Monday}

func (l Locale) loc() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}

// Local converts t into the caller's zone.
func (l Locale) Local(t time.Time) time.Time { return t.In(l.loc()) }

// Today is the caller's calendar date at instant now.
func (l Locale) Today(now time.Time) time.Time { return Day(now.In(l.loc())) }

// ParseDay reads a DayLayout key as a calendar day in the caller's zone.
func (l Locale) ParseDay(key string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, key, l.loc())
}
