package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"semcal/internal/ics"
	appLog "semcal/internal/log"
	"semcal/internal/plan"
	"semcal/internal/store"
	"semcal/internal/timetable"
)

// skippedHeader carries the comma-joined course codes that failed
// upstream and were left out of a partial schedule response.
const skippedHeader = "X-Semcal-Skipped-Courses"

// handleCourses proxies the published course list for a semester.
//
// GET /api/courses?semesterCode=25h
//
// Responses are cached per semester code for the configured TTL;
// course lists change rarely and the upstream scrape is the most
// expensive call this service makes.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	semesterCode := r.URL.Query().Get("semesterCode")
	if semesterCode == "" {
		writeError(w, http.StatusBadRequest, "Missing semesterCode")
		return
	}

	cacheTTL := time.Duration(s.cfg.CourseCacheSeconds) * time.Second
	now := time.Now()

	if cacheTTL > 0 {
		s.coursesMu.RLock()
		entry, ok := s.coursesCache[semesterCode]
		s.coursesMu.RUnlock()
		if ok && now.Sub(entry.updatedAt) < cacheTTL {
			writeJSON(w, http.StatusOK, entry.courses)
			return
		}
	}

	courses, err := s.gateway.Courses(r.Context(), semesterCode)
	if err != nil {
		var ue *timetable.UpstreamError
		switch {
		case errors.As(err, &ue):
			appLog.Error("course list upstream failure", err, "sem", semesterCode)
			writeError(w, ue.Status, "Failed to fetch courses")
		case errors.Is(err, timetable.ErrCourseDataMissing):
			appLog.Error("course data missing from upstream page", err, "sem", semesterCode)
			writeError(w, http.StatusInternalServerError, "Course data not found in upstream response")
		default:
			appLog.Error("course list fetch failed", err, "sem", semesterCode)
			writeError(w, http.StatusInternalServerError, "Error fetching courses")
		}
		return
	}

	if cacheTTL > 0 {
		s.coursesMu.Lock()
		s.coursesCache[semesterCode] = coursesCacheEntry{courses: courses, updatedAt: time.Now()}
		s.coursesMu.Unlock()
	}

	writeJSON(w, http.StatusOK, courses)
}

type semesterPlanRequest struct {
	SubjectCodes []string `json:"subjectCodes"`
	Semester     string   `json:"semester"`
}

// handleSemesterPlan proxies per-course schedule payloads.
//
// POST /api/semesterplan {"subjectCodes": [...], "semester": "25h"}
//
// Courses that fail upstream are skipped rather than failing the
// whole batch; their codes are reported in the X-Semcal-Skipped-Courses
// response header.
func (s *Server) handleSemesterPlan(w http.ResponseWriter, r *http.Request) {
	var req semesterPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.SubjectCodes) == 0 || req.Semester == "" {
		writeError(w, http.StatusBadRequest, "Invalid input: subjectCodes and semester are required")
		return
	}

	plans, skipped, err := s.gateway.Plans(r.Context(), req.SubjectCodes, req.Semester)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(skipped) > 0 {
		w.Header().Set(skippedHeader, strings.Join(skipped, ","))
	}

	writeJSON(w, http.StatusOK, plans)
}

type calendarRequest struct {
	Courses  []string          `json:"courses"`
	Semester string            `json:"semester"`
	State    plan.State        `json:"state"`
	Alias    map[string]string `json:"alias"`
	Compact  bool              `json:"compact"`
}

// handleCalendarPOST generates an ICS download from a JSON body.
//
// POST /api/calendar {"courses": [...], "semester": "...",
// "state": {...}, "alias": {...}}
func (s *Server) handleCalendarPOST(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	s.serveCalendar(w, r, req)
}

// handleCalendarGET is the query-parameter form used for subscribable
// feed URLs. The canonical encoding is:
//
//	courses  comma-separated course codes
//	state    percent-encoded JSON object
//	alias    percent-encoded JSON object
//	compact  "1" to collapse weekly runs into RRULEs
//
// state and alias parse failures fall back to empty values so a
// mangled link still yields a calendar.
func (s *Server) handleCalendarGET(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	coursesRaw := q.Get("courses")
	req := calendarRequest{
		Semester: q.Get("semester"),
		State:    plan.Decode(q.Get("state")),
		Alias:    decodeAlias(q.Get("alias")),
		Compact:  q.Get("compact") == "1",
	}
	if coursesRaw != "" {
		req.Courses = strings.Split(coursesRaw, ",")
	}

	s.serveCalendar(w, r, req)
}

func (s *Server) serveCalendar(w http.ResponseWriter, r *http.Request, req calendarRequest) {
	if len(req.Courses) == 0 || req.Semester == "" {
		writeError(w, http.StatusBadRequest, "Missing courses or semester")
		return
	}
	if req.State == nil {
		req.State = plan.State{}
	}

	plans, skipped, err := s.gateway.Plans(r.Context(), req.Courses, req.Semester)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(skipped) > 0 {
		w.Header().Set(skippedHeader, strings.Join(skipped, ","))
	}

	generate := ics.Generate
	if req.Compact {
		generate = ics.GenerateCompact
	}

	payload, err := generate(plans, req.State, req.Alias)
	if err != nil {
		appLog.Error("calendar generation failed", err, "sem", req.Semester)
		writeError(w, http.StatusInternalServerError, "Failed to generate calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}

// decodeAlias parses a percent-encoded JSON alias map, failing soft to
// an empty map.
func decodeAlias(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	var alias map[string]string
	if err := json.Unmarshal([]byte(decoded), &alias); err != nil {
		appLog.Warn("failed to parse alias; using empty map", "err", err)
		return map[string]string{}
	}
	if alias == nil {
		return map[string]string{}
	}
	return alias
}

// handleSaveState stores an editing session and returns its key.
//
// POST /api/calendar/save-state {"courses": [...], "semester": "...",
// "state": {...}, "alias": {...}} -> {"key": "..."}
//
// Entries expire after the configured TTL (10 minutes by default).
func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	var req store.SavedState
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Courses) == 0 || req.Semester == "" {
		writeError(w, http.StatusBadRequest, "Missing courses or semester")
		return
	}
	if req.State == nil {
		req.State = plan.State{}
	}
	if req.Alias == nil {
		req.Alias = map[string]string{}
	}

	key, err := s.store.Save(r.Context(), req)
	if err != nil {
		appLog.Error("save-state store failed", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

// handleLoadState retrieves a stored session.
//
// GET /api/calendar/save-state?key=... -> {"key": ..., "data": {...}}
// or 404 when the key is unknown or expired.
func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	data, ok, err := s.store.Load(r.Context(), key)
	if err != nil {
		appLog.Error("save-state load failed", err, "key", key)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Invalid or expired key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"key": key, "data": data})
}
