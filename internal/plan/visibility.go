package plan

import (
	"net/url"

	"github.com/goccy/go-json"

	appLog "semcal/internal/log"
	"semcal/internal/model"
)

// State is the per-activity shown/hidden selection, keyed by course id
// and then by activity key. Absence of a key means "visible": the
// default-to-visible policy applies to keys the state has never seen,
// so newly added courses show up without any toggling.
//
// State travels in the page URL as percent-encoded JSON; it is the
// single source of truth for which events render and export.
type State map[string]map[string]bool

// Visible reports whether the activity identified by key is shown for
// the given course. Missing courses and missing keys are visible.
func (s State) Visible(courseID, key string) bool {
	v, ok := s[courseID][key]
	if !ok {
		return true
	}
	return v
}

// Toggle flips the stored flag for (courseID, key), treating an absent
// entry as visible, so the first toggle hides the activity. The
// receiver is not mutated; a new State sharing no maps with the
// original is returned, which keeps concurrent readers safe.
func (s State) Toggle(courseID, key string) State {
	out := make(State, len(s)+1)
	for cid, keys := range s {
		cp := make(map[string]bool, len(keys))
		for k, v := range keys {
			cp[k] = v
		}
		out[cid] = cp
	}
	if out[courseID] == nil {
		out[courseID] = make(map[string]bool, 1)
	}
	out[courseID][key] = !s.Visible(courseID, key)
	return out
}

// Encode serializes the state as JSON wrapped in URL percent-encoding,
// the form carried in the page URL's state parameter.
func (s State) Encode() (string, error) {
	if s == nil {
		s = State{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(data)), nil
}

// Decode is the inverse of Encode. Malformed input fails soft: the
// error is logged and an empty state (everything visible) is returned,
// never an error, so a mangled share link degrades instead of failing
// the request.
func Decode(raw string) State {
	if raw == "" {
		return State{}
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		// Tolerate callers that hand us already-unescaped JSON.
		decoded = raw
	}

	var s State
	if err := json.Unmarshal([]byte(decoded), &s); err != nil {
		appLog.Warn("failed to parse visibility state; using empty state", "err", err)
		return State{}
	}
	if s == nil {
		return State{}
	}
	return s
}

// FilterPlans returns copies of the given plans containing only the
// events whose activity is visible per the state. Events whose weekday
// falls outside Monday..Friday have no activity key and are dropped,
// matching the closed Monday-Friday model used by grouping.
func FilterPlans(plans []model.SemesterPlan, s State) []model.SemesterPlan {
	out := make([]model.SemesterPlan, 0, len(plans))
	for _, p := range plans {
		kept := make([]model.ScheduledEvent, 0, len(p.Events))
		for _, ev := range p.Events {
			key, ok := ev.ActivityKey()
			if !ok {
				continue
			}
			if s.Visible(p.CourseID, key) {
				kept = append(kept, ev)
			}
		}
		filtered := p
		filtered.Events = kept
		out = append(out, filtered)
	}
	return out
}
