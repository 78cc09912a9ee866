package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UpstreamConfig points at the university timetable API.
type UpstreamConfig struct {
	// CourseListURL is the portal page that embeds the published course
	// list for a semester. The semester code is appended as ?sem=.
	CourseListURL string `yaml:"course_list_url" json:"course_list_url"`

	// PlanURL is the per-course schedule endpoint; course id and
	// semester are appended as query parameters.
	PlanURL string `yaml:"plan_url" json:"plan_url"`

	// APIKey is sent as the X-Gravitee-Api-Key header on PlanURL calls.
	APIKey string `yaml:"api_key" json:"api_key"`

	// TimeoutSeconds bounds each upstream HTTP call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// StoreConfig configures the ephemeral save-state store.
type StoreConfig struct {
	// Backend selects the store implementation: "memory" (default) or
	// "badger" for a disk-backed store that survives restarts.
	Backend string `yaml:"backend" json:"backend"`

	// BadgerPath is the badger data directory (backend = "badger").
	BadgerPath string `yaml:"badger_path" json:"badger_path"`

	// TTLMinutes is the per-entry lifetime of saved states.
	TTLMinutes int `yaml:"ttl_minutes" json:"ttl_minutes"`

	// CleanupCron is a cron-style schedule for sweeping expired
	// entries out of the memory backend (e.g. "*/5 * * * *").
	CleanupCron string `yaml:"cleanup" json:"cleanup"`
}

// BasicAuthConfig holds optional HTTP Basic Auth credentials.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`
	Store    StoreConfig    `yaml:"store" json:"store"`

	// CourseCacheSeconds is the TTL of the in-memory course-list
	// response cache (0 disables caching).
	CourseCacheSeconds int `yaml:"course_cache_seconds" json:"course_cache_seconds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:8080",
		Upstream: UpstreamConfig{
			CourseListURL:  "https://tp.educloud.no/ntnu/timeplan/emner.php",
			PlanURL:        "https://gw-ntnu.intark.uh-it.no/tp/prod/ws/1.4/course.php",
			TimeoutSeconds: 15,
		},
		Store: StoreConfig{
			Backend:     "memory",
			BadgerPath:  "/var/lib/semcal/store",
			TTLMinutes:  10,
			CleanupCron: "*/5 * * * *",
		},
		CourseCacheSeconds: 300,
		BasicAuth:          nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Upstream.CourseListURL == "" {
		c.Upstream.CourseListURL = def.Upstream.CourseListURL
	}
	if c.Upstream.PlanURL == "" {
		c.Upstream.PlanURL = def.Upstream.PlanURL
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = def.Upstream.TimeoutSeconds
	}

	switch c.Store.Backend {
	case "memory", "badger":
		// ok
	default:
		// Unknown backend; fall back to memory rather than failing startup.
		c.Store.Backend = "memory"
	}
	if c.Store.BadgerPath == "" {
		c.Store.BadgerPath = def.Store.BadgerPath
	}
	if c.Store.TTLMinutes <= 0 {
		c.Store.TTLMinutes = def.Store.TTLMinutes
	}
	if c.Store.CleanupCron == "" {
		c.Store.CleanupCron = def.Store.CleanupCron
	}

	if c.CourseCacheSeconds < 0 {
		c.CourseCacheSeconds = 0
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the config may hold an
//     upstream API key and basic-auth credentials).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".semcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
