// Package plan implements the semester-plan editing model: grouping of
// raw schedule events into per-activity entries and the per-activity
// visibility selection that drives rendering and export.
package plan

import (
	"sort"
	"strconv"
	"strings"

	appLog "semcal/internal/log"
	"semcal/internal/model"
)

// ActivityGroup is the aggregated, UI-facing representation of one
// recurring activity on one weekday, combining all of its weekly
// occurrences. The summary and clock times come from the first
// occurrence seen; weeks and student groups are aggregated sets.
type ActivityGroup struct {
	Summary        string   `json:"summary"`
	Weekday        string   `json:"weekday"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Weeks          []int    `json:"weeks"`
	FormattedWeeks string   `json:"formattedWeeks"`
	StudentGroups  []string `json:"studentgroups"`
	CourseName     string   `json:"coursename"`
}

// Group collapses each plan's event list into one ActivityGroup per
// (activity, weekday) pair, keyed as "{activityID}-{weekdayName}".
// Events with a weekday outside Monday..Friday are silently dropped;
// events whose start timestamp cannot be parsed are dropped with a
// warning since no week number can be derived for them.
//
// Aggregation is idempotent: regrouping the same input yields the same
// groups. Which event seeds a group's summary and clock times depends
// on input order (first seen wins); the week and student-group sets do
// not.
func Group(plans []model.SemesterPlan) map[string]map[string]ActivityGroup {
	grouped := make(map[string]map[string]ActivityGroup)

	for _, p := range plans {
		for _, ev := range p.Events {
			key, ok := ev.ActivityKey()
			if !ok {
				continue
			}

			start, err := model.ParseCivil(ev.DtStart)
			if err != nil {
				appLog.Warn("dropping event with malformed start",
					"courseid", p.CourseID, "aid", ev.ActivityID, "dtstart", ev.DtStart)
				continue
			}
			week := model.ISOWeek(start)

			byKey := grouped[p.CourseID]
			if byKey == nil {
				byKey = make(map[string]ActivityGroup)
				grouped[p.CourseID] = byKey
			}

			g, seen := byKey[key]
			if !seen {
				day, _ := model.WeekdayFromNumber(ev.Weekday)
				g = ActivityGroup{
					Summary:       ev.Summary,
					Weekday:       day.Name(),
					Start:         model.ClockString(ev.DtStart),
					End:           model.ClockString(ev.DtEnd),
					CourseName:    p.CourseName,
					StudentGroups: append([]string(nil), ev.StudentGroups...),
				}
			} else {
				g.StudentGroups = append(g.StudentGroups, ev.StudentGroups...)
			}
			g.Weeks = append(g.Weeks, week)
			byKey[key] = g
		}
	}

	for _, byKey := range grouped {
		for key, g := range byKey {
			g.Weeks = dedupeInts(g.Weeks)
			g.FormattedWeeks = FormatWeeks(g.Weeks)
			g.StudentGroups = dedupeStrings(g.StudentGroups)
			byKey[key] = g
		}
	}

	return grouped
}

// FormatWeeks renders a set of week numbers as a compact range string:
// consecutive integers collapse to "start-end", isolated ones stand
// alone, joined with ", ". {3,4,5,7,9,10} becomes "3-5, 7, 9-10"; the
// empty set becomes "".
func FormatWeeks(weeks []int) string {
	if len(weeks) == 0 {
		return ""
	}

	sorted := append([]int(nil), weeks...)
	sort.Ints(sorted)

	var ranges []string
	start, end := sorted[0], sorted[0]

	flush := func() {
		if start == end {
			ranges = append(ranges, strconv.Itoa(start))
		} else {
			ranges = append(ranges, strconv.Itoa(start)+"-"+strconv.Itoa(end))
		}
	}

	for _, w := range sorted[1:] {
		if w == end+1 {
			end = w
			continue
		}
		if w == end {
			continue
		}
		flush()
		start, end = w, w
	}
	flush()

	return strings.Join(ranges, ", ")
}

func dedupeInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
