package web

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"semcal/internal/layout"
	"semcal/internal/model"
	"semcal/internal/plan"
)

type layoutRequest struct {
	Plans []model.SemesterPlan `json:"plans"`
	State plan.State           `json:"state"`

	// View is "day", "week" or "month".
	View string `json:"view"`

	// Date is the selected calendar date, "YYYY-MM-DD".
	Date string `json:"date"`

	// Expanded shows the full 24-hour window; otherwise the visible
	// window starts at the default day start hour.
	Expanded bool `json:"expanded"`
}

// positionedEventDTO combines horizontal packing and vertical geometry
// for one event in a day column.
type positionedEventDTO struct {
	Event  model.ScheduledEvent `json:"event"`
	Column int                  `json:"column"`
	Width  float64              `json:"width"`
	Left   float64              `json:"left"`
	Top    float64              `json:"top"`
	Height float64              `json:"height"`
}

type dayColumnDTO struct {
	Date   string               `json:"date"`
	Events []positionedEventDTO `json:"events"`
}

type layoutResponse struct {
	View  string             `json:"view"`
	Days  []dayColumnDTO     `json:"days,omitempty"`
	Cells []layout.MonthCell `json:"cells,omitempty"`
}

// handleLayout computes the calendar view model for a set of plans and
// a visibility state, so thin clients don't have to reimplement the
// packing rules.
//
// POST /api/layout {"plans": [...], "state": {...}, "view": "week",
// "date": "2025-08-18"}
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing date")
		return
	}
	if req.State == nil {
		req.State = plan.State{}
	}

	var events []model.ScheduledEvent
	for _, p := range plan.FilterPlans(req.Plans, req.State) {
		events = append(events, p.Events...)
	}

	windowStart := layout.DefaultDayStartHour
	if req.Expanded {
		windowStart = 0
	}

	var resp layoutResponse
	switch req.View {
	case "day":
		resp = layoutResponse{
			View: "day",
			Days: []dayColumnDTO{dayColumn(events, date, windowStart)},
		}
	case "week":
		resp = layoutResponse{View: "week"}
		for _, day := range layout.WeekDates(date) {
			resp.Days = append(resp.Days, dayColumn(events, day, windowStart))
		}
	case "month":
		resp = layoutResponse{
			View:  "month",
			Cells: layout.MonthCells(events, date),
		}
	default:
		writeError(w, http.StatusBadRequest, "Invalid view; expected day, week or month")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func dayColumn(events []model.ScheduledEvent, day time.Time, windowStart int) dayColumnDTO {
	col := dayColumnDTO{Date: day.Format("2006-01-02")}

	for _, pe := range layout.PositionDay(layout.EventsForDay(events, day)) {
		geo := layout.VerticalGeometry(pe.Event, windowStart)
		if geo == nil {
			// Ends before the visible window; not rendered.
			continue
		}
		col.Events = append(col.Events, positionedEventDTO{
			Event:  pe.Event,
			Column: pe.Column,
			Width:  pe.Width,
			Left:   pe.Left,
			Top:    geo.Top,
			Height: geo.Height,
		})
	}
	return col
}
