// Package snapshot provides point-in-time captures of pool state for
// inspection, export, and tests.
package snapshot

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// CategoryState describes one category's available list at capture time.
type CategoryState struct {
	Name      string   `json:"name"`
	Available int      `json:"available"`
	ItemIDs   []string `json:"item_ids,omitempty"`
}

// LeaseState describes one active lease at capture time.
type LeaseState struct {
	ItemID       string        `json:"item_id"`
	Category     string        `json:"category"`
	Holder       string        `json:"holder"`
	CheckedOutAt time.Time     `json:"checked_out_at"`
	Age          time.Duration `json:"age_ns"`
}

// State is a complete capture of the pool's observable state.
type State struct {
	TakenAt    time.Time       `json:"taken_at"`
	Categories []CategoryState `json:"categories"`
	Leases     []LeaseState    `json:"leases,omitempty"`
}

// Encode serializes the state as indented JSON.
func (s State) Encode() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// TotalAvailable sums available items across all categories.
func (s State) TotalAvailable() int {
	total := 0
	for _, c := range s.Categories {
		total += c.Available
	}
	return total
}

// Recorder retains a bounded history of pool states.
type Recorder struct {
	mu      sync.RWMutex
	limit   int
	history []State
}

// NewRecorder creates a recorder keeping at most limit states; limit values
// below 1 fall back to 1.
func NewRecorder(limit int) *Recorder {
	if limit < 1 {
		limit = 1
	}
	return &Recorder{limit: limit}
}

// Record appends a state, evicting the oldest when over the limit.
func (r *Recorder) Record(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, state)
	if len(r.history) > r.limit {
		r.history = r.history[len(r.history)-r.limit:]
	}
}

// Latest returns the most recent state, if any.
func (r *Recorder) Latest() (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return State{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns a copy of the retained states, oldest first.
func (r *Recorder) History() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, len(r.history))
	copy(out, r.history)
	return out
}
