// Package timetable is the gateway to the university timetable API:
// the published course list for a semester and the per-course schedule
// payloads. Upstream JSON is decoded into explicit structs and
// validated at this boundary; nothing downstream trusts field presence.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"semcal/internal/config"
	appLog "semcal/internal/log"
	"semcal/internal/model"
)

// ErrCourseDataMissing is returned when the portal page fetched for a
// course list does not contain the embedded course data.
var ErrCourseDataMissing = errors.New("course data not found in upstream response")

// UpstreamError reports a non-OK upstream HTTP status so handlers can
// pass it through.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d for %s", e.Status, redactURL(e.URL))
}

// coursesPattern matches the JavaScript assignment embedding the
// course list in the portal page.
var coursesPattern = regexp.MustCompile(`var courses = (\[[\s\S]*?\]);`)

// Client calls the timetable API. All calls are sequential and bounded
// by the configured HTTP timeout; there are no retries.
type Client struct {
	client        *http.Client
	courseListURL string
	planURL       string
	apiKey        string
	validate      *validator.Validate
}

// NewClient builds a Client from upstream configuration.
func NewClient(cfg config.UpstreamConfig) *Client {
	return &Client{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		courseListURL: cfg.CourseListURL,
		planURL:       cfg.PlanURL,
		apiKey:        cfg.APIKey,
		validate:      validator.New(),
	}
}

// courseData is the raw shape of one embedded course entry.
type courseData struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	FullnameEN string `json:"fullname_en"`
	FullnameNN string `json:"fullname_nn"`
	TermID     string `json:"idtermin"`
}

// Courses fetches the published course list for a semester code by
// extracting the embedded course data from the portal page.
func (c *Client) Courses(ctx context.Context, semesterCode string) ([]model.Course, error) {
	if semesterCode == "" {
		return nil, errors.New("semester code is empty")
	}

	u := c.courseListURL + "?sem=" + url.QueryEscape(semesterCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	appLog.Info("course list fetch start", "sem", semesterCode, "url", redactURL(u))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	matches := coursesPattern.FindSubmatch(body)
	if matches == nil {
		return nil, ErrCourseDataMissing
	}

	var raw []courseData
	if err := json.Unmarshal(matches[1], &raw); err != nil {
		return nil, fmt.Errorf("decoding embedded course data: %w", err)
	}

	courses := make([]model.Course, 0, len(raw))
	for _, cd := range raw {
		if err := c.validate.Struct(cd); err != nil {
			appLog.Warn("skipping malformed course entry", "sem", semesterCode, "err", err)
			continue
		}
		courses = append(courses, model.Course{
			CourseID:   cd.ID,
			Name:       cd.Name,
			FullnameEN: cd.FullnameEN,
			FullnameNN: cd.FullnameNN,
			TermID:     cd.TermID,
		})
	}

	appLog.Info("course list fetch done", "sem", semesterCode, "course_count", len(courses))
	return courses, nil
}

// Plans fetches the schedule payload for each subject code in order,
// one upstream call per code. Failing codes are skipped, logged and
// returned in the second value; the caller decides how to surface the
// partial result. An error is returned only for invalid input.
func (c *Client) Plans(ctx context.Context, subjectCodes []string, semester string) ([]model.SemesterPlan, []string, error) {
	if len(subjectCodes) == 0 {
		return nil, nil, errors.New("no subject codes given")
	}
	if semester == "" {
		return nil, nil, errors.New("semester is empty")
	}

	plans := make([]model.SemesterPlan, 0, len(subjectCodes))
	var skipped []string

	for _, code := range subjectCodes {
		p, err := c.planFor(ctx, code, semester)
		if err != nil {
			appLog.Error("semester plan fetch failed; skipping course", err, "courseid", code, "sem", semester)
			skipped = append(skipped, code)
			continue
		}
		plans = append(plans, p)
	}

	return plans, skipped, nil
}

func (c *Client) planFor(ctx context.Context, code, semester string) (model.SemesterPlan, error) {
	q := url.Values{}
	q.Set("id", code)
	q.Set("sem", semester)
	q.Set("lang", "no")
	q.Set("split_intervals", "true")
	q.Set("exam", "true")
	u := c.planURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.SemesterPlan{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Gravitee-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return model.SemesterPlan{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SemesterPlan{}, &UpstreamError{Status: resp.StatusCode, URL: u}
	}

	var p model.SemesterPlan
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return model.SemesterPlan{}, fmt.Errorf("decoding plan for %s: %w", code, err)
	}
	if err := c.validate.Struct(p); err != nil {
		return model.SemesterPlan{}, fmt.Errorf("invalid plan payload for %s: %w", code, err)
	}

	return p, nil
}

// redactURL reduces a URL to its host part for logging.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/..."
}
