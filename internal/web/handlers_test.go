package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"semcal/internal/config"
	"semcal/internal/model"
	"semcal/internal/store"
)

// fakeGateway serves canned plans and counts upstream calls.
type fakeGateway struct {
	courses     []model.Course
	coursesErr  error
	courseCalls int

	plans   []model.SemesterPlan
	skipped []string
}

func (f *fakeGateway) Courses(_ context.Context, _ string) ([]model.Course, error) {
	f.courseCalls++
	if f.coursesErr != nil {
		return nil, f.coursesErr
	}
	return f.courses, nil
}

func (f *fakeGateway) Plans(_ context.Context, codes []string, _ string) ([]model.SemesterPlan, []string, error) {
	var out []model.SemesterPlan
	for _, p := range f.plans {
		for _, c := range codes {
			if p.CourseID == c {
				out = append(out, p)
			}
		}
	}
	return out, f.skipped, nil
}

func testServer(t *testing.T, gw *fakeGateway) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	return NewServer(cfg, gw, store.NewMemory(10*time.Minute))
}

func weeklyPlan(courseID, name string) model.SemesterPlan {
	return model.SemesterPlan{
		CourseID:   courseID,
		CourseName: name,
		Events: []model.ScheduledEvent{
			{CourseID: courseID, ActivityID: "1", Weekday: 1, Summary: "Forelesning",
				DtStart: "2025-01-06T08:00:00+01", DtEnd: "2025-01-06T10:00:00+01"},
			{CourseID: courseID, ActivityID: "1", Weekday: 1, Summary: "Forelesning",
				DtStart: "2025-01-13T08:00:00+01", DtEnd: "2025-01-13T10:00:00+01"},
		},
	}
}

func TestHealth(t *testing.T) {
	s := testServer(t, &fakeGateway{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCoursesRequiresSemesterCode(t *testing.T) {
	s := testServer(t, &fakeGateway{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCoursesCachesPerSemester(t *testing.T) {
	gw := &fakeGateway{courses: []model.Course{{CourseID: "TDT4100"}}}
	s := testServer(t, gw)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses?semesterCode=25v", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if gw.courseCalls != 1 {
		t.Errorf("upstream called %d times, want 1 (cached)", gw.courseCalls)
	}
}

func TestCoursesUpstreamFailure(t *testing.T) {
	gw := &fakeGateway{coursesErr: errors.New("boom")}
	s := testServer(t, gw)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses?semesterCode=25v", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestSemesterPlanValidation(t *testing.T) {
	s := testServer(t, &fakeGateway{})

	for _, body := range []string{
		`{}`,
		`{"subjectCodes":[],"semester":"25v"}`,
		`{"subjectCodes":["X"]}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/semesterplan", strings.NewReader(body))
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSemesterPlanPartialResults(t *testing.T) {
	gw := &fakeGateway{
		plans:   []model.SemesterPlan{weeklyPlan("TDT4100", "OOP")},
		skipped: []string{"BROKEN"},
	}
	s := testServer(t, gw)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/semesterplan",
		strings.NewReader(`{"subjectCodes":["TDT4100","BROKEN"],"semester":"25v"}`))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(skippedHeader); got != "BROKEN" {
		t.Errorf("skipped header = %q, want BROKEN", got)
	}

	var plans []model.SemesterPlan
	if err := json.Unmarshal(rec.Body.Bytes(), &plans); err != nil {
		t.Fatal(err)
	}
	if len(plans) != 1 || plans[0].CourseID != "TDT4100" {
		t.Errorf("plans = %+v", plans)
	}
}

func TestCalendarPOST(t *testing.T) {
	gw := &fakeGateway{plans: []model.SemesterPlan{
		weeklyPlan("TDT4100", "OOP"),
		weeklyPlan("TMA4100", "Matte"),
	}}
	s := testServer(t, gw)

	body := map[string]any{
		"courses":  []string{"TDT4100", "TMA4100"},
		"semester": "25v",
		"state":    map[string]map[string]bool{"TDT4100": {"1-Mandag": false}},
	}
	raw, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/calendar", bytes.NewReader(raw))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/calendar" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "calendar.ics") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	payload := rec.Body.String()
	if strings.Contains(payload, "OOP") {
		t.Error("hidden course leaked into export")
	}
	if got := strings.Count(payload, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("got %d VEVENTs, want the visible course's 2", got)
	}
}

func TestCalendarPOSTMissingInput(t *testing.T) {
	s := testServer(t, &fakeGateway{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/calendar", strings.NewReader(`{"semester":"25v"}`))
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCalendarGETCanonicalEncoding(t *testing.T) {
	gw := &fakeGateway{plans: []model.SemesterPlan{
		weeklyPlan("TDT4100", "OOP"),
		weeklyPlan("TMA4100", "Matte"),
	}}
	s := testServer(t, gw)

	state := url.QueryEscape(`{"TMA4100":{"1-Mandag":false}}`)
	alias := url.QueryEscape(`{"TDT4100":"Objekt"}`)
	target := "/api/calendar?courses=TDT4100,TMA4100&semester=25v&state=" + state + "&alias=" + alias

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	payload := rec.Body.String()
	if strings.Contains(payload, "Matte") {
		t.Error("hidden course leaked into export")
	}
	if !strings.Contains(payload, "Objekt - Forelesning") {
		t.Error("alias from query parameter not applied")
	}
}

func TestCalendarGETFailsSoftOnBadState(t *testing.T) {
	gw := &fakeGateway{plans: []model.SemesterPlan{weeklyPlan("TDT4100", "OOP")}}
	s := testServer(t, gw)

	target := "/api/calendar?courses=TDT4100&semester=25v&state=garbage&alias=garbage"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with everything visible", rec.Code)
	}
	if got := strings.Count(rec.Body.String(), "BEGIN:VEVENT"); got != 2 {
		t.Errorf("got %d VEVENTs, want 2", got)
	}
}

func TestCalendarGETMissingCourses(t *testing.T) {
	s := testServer(t, &fakeGateway{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar?semester=25v", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSaveStateRoundTrip(t *testing.T) {
	s := testServer(t, &fakeGateway{})

	body := `{"courses":["TDT4100"],"semester":"25v","state":{"TDT4100":{"1-Mandag":false}},"alias":{"TDT4100":"OOP"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/calendar/save-state", strings.NewReader(body))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d body=%s", rec.Code, rec.Body.String())
	}

	var saved struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.Key == "" {
		t.Fatal("empty key")
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar/save-state?key="+saved.Key, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}

	var loaded struct {
		Key  string           `json:"key"`
		Data store.SavedState `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Data.Semester != "25v" || loaded.Data.Alias["TDT4100"] != "OOP" {
		t.Errorf("loaded data mismatch: %+v", loaded.Data)
	}
	if loaded.Data.State.Visible("TDT4100", "1-Mandag") {
		t.Error("visibility state lost in round trip")
	}
}

func TestSaveStateValidation(t *testing.T) {
	s := testServer(t, &fakeGateway{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/calendar/save-state", strings.NewReader(`{"semester":"25v"}`))
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing courses: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar/save-state", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing key: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar/save-state?key=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown key: status = %d, want 404", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "user", Password: "pass"}
	s := NewServer(cfg, &fakeGateway{}, store.NewMemory(time.Minute))

	// /health stays open.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health behind auth: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses?semesterCode=25v", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/courses?semesterCode=25v", nil)
	req.SetBasicAuth("user", "pass")
	s.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Error("valid credentials rejected")
	}
}
