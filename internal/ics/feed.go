package ics

import (
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"semcal/internal/model"
	"semcal/internal/plan"
)

// GenerateCompact is the subscribable-feed variant of Generate. It
// applies the same visibility filter and produces the same occurrence
// set, but activities whose occurrences form one unbroken weekly run
// are emitted as a single VEVENT with an RRULE instead of one VEVENT
// per week. Activities with gaps in their week set, or with occurrences
// at varying clock times, fall back to per-occurrence entries.
func GenerateCompact(plans []model.SemesterPlan, state plan.State, alias map[string]string) (string, error) {
	cal := newCalendar()

	for _, p := range plan.FilterPlans(plans, state) {
		for _, run := range weeklyRuns(p.Events) {
			first := run[0]

			start, err := model.ParseCivil(first.DtStart)
			if err != nil {
				continue
			}
			end, err := model.ParseCivil(first.DtEnd)
			if err != nil {
				continue
			}

			ve := cal.AddEvent(uuid.NewString())
			ve.SetProperty(ical.ComponentPropertyDtstamp, time.Now().UTC().Format(icsTimeLayout)+"Z")
			ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(icsTimeLayout))
			ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(icsTimeLayout))
			ve.SetProperty(ical.ComponentPropertySummary, eventTitle(p, first, alias))
			if loc := roomNames(first.Rooms); loc != "" {
				ve.SetProperty(ical.ComponentPropertyLocation, loc)
			}
			if desc := groupsDescription(first.StudentGroups); desc != "" {
				ve.SetProperty(ical.ComponentPropertyDescription, desc)
			}

			if len(run) > 1 {
				opt := rrule.ROption{
					Freq:    rrule.WEEKLY,
					Count:   len(run),
					Dtstart: start,
				}
				ve.SetProperty(ical.ComponentPropertyRrule, opt.RRuleString())
			}
		}
	}

	return cal.Serialize(), nil
}

// weeklyRuns groups events by activity key and splits each activity's
// occurrences into maximal runs of exactly-weekly repeats at the same
// clock time. The rrule library is the arbiter: a candidate run is
// accepted only if FREQ=WEEKLY;COUNT=n expanded from the first start
// reproduces every occurrence, so a run always round-trips through any
// compliant calendar client.
func weeklyRuns(events []model.ScheduledEvent) [][]model.ScheduledEvent {
	type timed struct {
		ev    model.ScheduledEvent
		start time.Time
	}

	byKey := make(map[string][]timed)
	var keys []string
	for _, ev := range events {
		key, ok := ev.ActivityKey()
		if !ok {
			continue
		}
		start, err := model.ParseCivil(ev.DtStart)
		if err != nil {
			continue
		}
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], timed{ev: ev, start: start})
	}

	var runs [][]model.ScheduledEvent
	for _, key := range keys {
		occ := byKey[key]
		sort.SliceStable(occ, func(i, j int) bool { return occ[i].start.Before(occ[j].start) })

		for i := 0; i < len(occ); {
			j := i + 1
			for j < len(occ) && occ[j].start.Equal(occ[j-1].start.AddDate(0, 0, 7)) {
				j++
			}

			run := make([]model.ScheduledEvent, 0, j-i)
			starts := make([]time.Time, 0, j-i)
			for _, t := range occ[i:j] {
				run = append(run, t.ev)
				starts = append(starts, t.start)
			}

			if len(run) > 1 && !rruleMatches(starts) {
				// Expansion disagreement; emit singles instead.
				for _, t := range occ[i:j] {
					runs = append(runs, []model.ScheduledEvent{t.ev})
				}
			} else {
				runs = append(runs, run)
			}
			i = j
		}
	}
	return runs
}

// rruleMatches verifies that a weekly rule from starts[0] with
// COUNT=len(starts) expands to exactly the given instants.
func rruleMatches(starts []time.Time) bool {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Count:   len(starts),
		Dtstart: starts[0],
	})
	if err != nil {
		return false
	}
	expanded := r.All()
	if len(expanded) != len(starts) {
		return false
	}
	for i := range starts {
		if !expanded[i].Equal(starts[i]) {
			return false
		}
	}
	return true
}
