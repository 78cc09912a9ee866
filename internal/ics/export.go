// Package ics renders filtered semester plans as iCalendar payloads:
// one VEVENT per surviving schedule occurrence, or a compacted feed
// form where contiguous weekly runs collapse into RRULEs.
package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "semcal/internal/log"
	"semcal/internal/model"
	"semcal/internal/plan"
)

// icsTimeLayout is the floating (timezone-less) iCalendar date-time
// form. Upstream timestamps are civil time with a throwaway offset
// suffix, so events are written as floating local times with no
// conversion.
const icsTimeLayout = "20060102T150405"

// Generate builds an ICS payload from the given plans, keeping only
// events whose activity is visible per state. alias maps course ids to
// display names that replace the upstream course name in event titles.
//
// The output is a pure function of (plans, state, alias): re-running
// it without a visibility toggle in between yields the same set of
// entries.
func Generate(plans []model.SemesterPlan, state plan.State, alias map[string]string) (string, error) {
	cal := newCalendar()

	for _, p := range plan.FilterPlans(plans, state) {
		for _, ev := range p.Events {
			start, err := model.ParseCivil(ev.DtStart)
			if err != nil {
				appLog.Warn("skipping event with malformed start",
					"courseid", p.CourseID, "aid", ev.ActivityID, "dtstart", ev.DtStart)
				continue
			}
			end, err := model.ParseCivil(ev.DtEnd)
			if err != nil {
				appLog.Warn("skipping event with malformed end",
					"courseid", p.CourseID, "aid", ev.ActivityID, "dtend", ev.DtEnd)
				continue
			}

			ve := cal.AddEvent(uuid.NewString())
			ve.SetProperty(ical.ComponentPropertyDtstamp, time.Now().UTC().Format(icsTimeLayout)+"Z")
			ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(icsTimeLayout))
			ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(icsTimeLayout))
			ve.SetProperty(ical.ComponentPropertySummary, eventTitle(p, ev, alias))

			if loc := roomNames(ev.Rooms); loc != "" {
				ve.SetProperty(ical.ComponentPropertyLocation, loc)
			}
			if desc := groupsDescription(ev.StudentGroups); desc != "" {
				ve.SetProperty(ical.ComponentPropertyDescription, desc)
			}
		}
	}

	return cal.Serialize(), nil
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//semcal//semester calendar//NO")
	return cal
}

// eventTitle is "{alias-or-coursename} - {summary}".
func eventTitle(p model.SemesterPlan, ev model.ScheduledEvent, alias map[string]string) string {
	name := p.CourseName
	if a, ok := alias[p.CourseID]; ok && a != "" {
		name = a
	}
	return name + " - " + ev.Summary
}

func roomNames(rooms []model.Room) string {
	if len(rooms) == 0 {
		return ""
	}
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

func groupsDescription(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return "Student groups: " + strings.Join(groups, ", ")
}
