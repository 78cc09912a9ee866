// Package layout computes view models for the day/week/month calendar
// grids: column packing of overlapping events, vertical geometry
// within the visible hour window, and month-cell bucketing. Everything
// here is a pure function recomputed per request; nothing is persisted.
package layout

import (
	"sort"
	"time"

	"semcal/internal/model"
)

const (
	// HourHeight is the pixel height of one hour row in day/week views.
	HourHeight = 32

	// DefaultDayStartHour is the top of the visible window in the
	// collapsed (non-expanded) day/week views.
	DefaultDayStartHour = 8

	// maxEventsPerMonthCell caps how many events a month cell lists
	// before collapsing the rest into an overflow count.
	maxEventsPerMonthCell = 3
)

// PositionedEvent is a ScheduledEvent plus its assigned packing column
// and the horizontal geometry derived from it, in percent of the day
// column's width.
type PositionedEvent struct {
	Event  model.ScheduledEvent `json:"event"`
	Column int                  `json:"column"`
	Width  float64              `json:"width"`
	Left   float64              `json:"left"`
}

// PositionDay assigns the given day's events to side-by-side columns
// with an interval sweep:
//
//  1. Events are sorted by start time, ties keeping input order.
//  2. Columns whose occupant ends at or before the next event's start
//     are freed first, so back-to-back events reuse a column.
//  3. The event takes the lowest free column index.
//
// Width is 100 divided by the number of active columns at the moment
// of placement, and left = width * column. Geometry is frozen at
// placement time and never recomputed when later events join or leave
// a cluster; widths within one cluster can therefore disagree. That
// matches the rendering this service feeds and must not be "fixed"
// here.
//
// Events whose timestamps do not parse are skipped.
func PositionDay(events []model.ScheduledEvent) []PositionedEvent {
	if len(events) == 0 {
		return nil
	}

	type timed struct {
		ev         model.ScheduledEvent
		start, end time.Time
	}

	sorted := make([]timed, 0, len(events))
	for _, ev := range events {
		start, err := model.ParseCivil(ev.DtStart)
		if err != nil {
			continue
		}
		end, err := model.ParseCivil(ev.DtEnd)
		if err != nil {
			continue
		}
		sorted = append(sorted, timed{ev: ev, start: start, end: end})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start.Before(sorted[j].start)
	})

	type column struct {
		index int
		end   time.Time
	}
	var active []column

	positioned := make([]PositionedEvent, 0, len(sorted))
	for _, t := range sorted {
		// Free columns whose occupant has ended; an exact touch
		// (end == next start) frees the column too.
		kept := active[:0]
		for _, c := range active {
			if c.end.After(t.start) {
				kept = append(kept, c)
			}
		}
		active = kept

		// Lowest unused column index among the still-active columns.
		col := 0
		for {
			used := false
			for _, c := range active {
				if c.index == col {
					used = true
					break
				}
			}
			if !used {
				break
			}
			col++
		}

		active = append(active, column{index: col, end: t.end})

		width := 100.0 / float64(len(active))
		positioned = append(positioned, PositionedEvent{
			Event:  t.ev,
			Column: col,
			Width:  width,
			Left:   width * float64(col),
		})
	}

	return positioned
}

// Geometry is the vertical placement of one event inside the visible
// hour window.
type Geometry struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// VerticalGeometry computes an event's top offset and height in pixels
// for a window starting at windowStartHour. Events ending at or before
// the window start are omitted (nil). Events starting before the
// window are clipped to the top edge; the end is never clipped.
func VerticalGeometry(ev model.ScheduledEvent, windowStartHour int) *Geometry {
	startHour, ok := clockHour(ev.DtStart)
	if !ok {
		return nil
	}
	endHour, ok := clockHour(ev.DtEnd)
	if !ok {
		return nil
	}

	if endHour <= float64(windowStartHour) {
		return nil
	}

	clipped := startHour
	if clipped < float64(windowStartHour) {
		clipped = float64(windowStartHour)
	}

	return &Geometry{
		Top:    (clipped - float64(windowStartHour)) * HourHeight,
		Height: (endHour - clipped) * HourHeight,
	}
}

// clockHour returns the fractional hour of day of a civil timestamp.
func clockHour(dt string) (float64, bool) {
	t, err := model.ParseCivil(dt)
	if err != nil {
		return 0, false
	}
	return float64(t.Hour()) + float64(t.Minute())/60, true
}

// WeekDates returns the Monday..Friday dates of the week containing
// the given date (weeks start on Monday).
func WeekDates(date time.Time) []time.Time {
	// Days back to Monday; Sunday counts as the end of the prior week.
	back := (int(date.Weekday()) + 6) % 7
	monday := date.AddDate(0, 0, -back)

	days := make([]time.Time, 5)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i)
	}
	return days
}

// EventsForDay filters events to those starting on the given calendar
// date, matched on civil year/month/day.
func EventsForDay(events []model.ScheduledEvent, day time.Time) []model.ScheduledEvent {
	var out []model.ScheduledEvent
	for _, ev := range events {
		t, err := model.ParseCivil(ev.DtStart)
		if err != nil {
			continue
		}
		if t.Year() == day.Year() && t.Month() == day.Month() && t.Day() == day.Day() {
			out = append(out, ev)
		}
	}
	return out
}

// MonthCell is one day cell of the month grid: a stacked list of at
// most three events plus an overflow count, no column packing.
type MonthCell struct {
	Date           time.Time              `json:"date"`
	InCurrentMonth bool                   `json:"inCurrentMonth"`
	Events         []model.ScheduledEvent `json:"events"`
	Overflow       int                    `json:"overflow"`
}

// MonthCells builds the month grid for the month containing ref: full
// weeks from the Monday on or before the 1st through the Sunday on or
// after the last day. Each event lands in exactly one cell, matched on
// its start date.
func MonthCells(events []model.ScheduledEvent, ref time.Time) []MonthCell {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	last := first.AddDate(0, 1, -1)

	start := first.AddDate(0, 0, -((int(first.Weekday()) + 6) % 7))
	end := last.AddDate(0, 0, (7-int(last.Weekday()))%7)

	var cells []MonthCell
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayEvents := EventsForDay(events, day)

		cell := MonthCell{
			Date:           day,
			InCurrentMonth: day.Month() == ref.Month(),
			Events:         dayEvents,
		}
		if len(dayEvents) > maxEventsPerMonthCell {
			cell.Events = dayEvents[:maxEventsPerMonthCell]
			cell.Overflow = len(dayEvents) - maxEventsPerMonthCell
		}
		cells = append(cells, cell)
	}
	return cells
}
