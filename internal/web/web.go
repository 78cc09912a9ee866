// Package web exposes the HTTP API: the course-list and schedule
// proxies, calendar export, the layout endpoint and the ephemeral
// save-state endpoints.
package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"semcal/internal/config"
	appLog "semcal/internal/log"
	"semcal/internal/model"
	"semcal/internal/store"
)

// Gateway is the slice of the timetable client the server needs;
// tests substitute a fake.
type Gateway interface {
	Courses(ctx context.Context, semesterCode string) ([]model.Course, error)
	Plans(ctx context.Context, subjectCodes []string, semester string) ([]model.SemesterPlan, []string, error)
}

// Server wires the gateway, the save-state store and the HTTP routes.
type Server struct {
	cfg     *config.Config
	gateway Gateway
	store   store.Store
	router  chi.Router

	// In-memory cache of course-list responses per semester code, to
	// avoid re-scraping the portal page on every autocomplete request.
	coursesMu    sync.RWMutex
	coursesCache map[string]coursesCacheEntry
}

type coursesCacheEntry struct {
	courses   []model.Course
	updatedAt time.Time
}

// NewServer constructs a Server and registers its routes.
func NewServer(cfg *config.Config, gw Gateway, st store.Store) *Server {
	s := &Server{
		cfg:          cfg,
		gateway:      gw,
		store:        st,
		router:       chi.NewRouter(),
		coursesCache: make(map[string]coursesCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler, with basic auth applied when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/courses", s.handleCourses)
		r.Post("/semesterplan", s.handleSemesterPlan)
		r.Post("/layout", s.handleLayout)

		r.Get("/calendar", s.handleCalendarGET)
		r.Post("/calendar", s.handleCalendarPOST)
		r.Post("/calendar/save-state", s.handleSaveState)
		r.Get("/calendar/save-state", s.handleLoadState)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="semcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
