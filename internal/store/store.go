// Package store holds shared plan links: the payload a user saves to
// get a short key back, retrievable until a fixed TTL expires. The
// Store interface keeps the backend injectable; the process-wide map
// of the memory backend is a constructor-owned value, never a package
// global.
package store

import (
	"context"

	"semcal/internal/plan"
)

// SavedState is one shareable editing session: the selected courses,
// the semester, the visibility selection and the course alias map.
type SavedState struct {
	Courses  []string          `json:"courses"`
	Semester string            `json:"semester"`
	State    plan.State        `json:"state"`
	Alias    map[string]string `json:"alias"`
}

// Store is a key-value store with per-entry TTL eviction.
type Store interface {
	// Save stores the payload under a fresh random key and returns it.
	Save(ctx context.Context, s SavedState) (string, error)

	// Load returns the payload for key. The bool is false when the key
	// is unknown or its entry has expired.
	Load(ctx context.Context, key string) (SavedState, bool, error)

	// Close releases backend resources.
	Close() error
}
