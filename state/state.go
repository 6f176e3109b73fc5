// Durable run state for the agent: the seen-post set, rate limiter history,
// budget counters, and a few scalar markers, stored as a single JSON document.
//
// The document is forward compatible: top-level keys this version does not
// know about are kept and written back unchanged.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/moltguard/moltguard/budget"
	"github.com/moltguard/moltguard/ratelimit"
)

// MaxSeenPosts bounds the seen-post set; the oldest IDs are dropped first.
const MaxSeenPosts = 10_000

var knownKeys = map[string]bool{
	"seen_post_ids":     true,
	"rate_state":        true,
	"budget_state":      true,
	"last_known_metric": true,
	"daily_counts":      true,
	"updated_at":        true,
}

// RunState is the root aggregate persisted once per cycle.
type RunState struct {
	SeenPostIDs     map[string]bool
	RateState       ratelimit.State
	BudgetState     budget.State
	LastKnownMetric int
	// DailyCounts holds in-process engagement counters keyed by count bucket:
	// today's day buckets and lifetime markers.
	DailyCounts map[string]int
	UpdatedAt   time.Time

	// insertion order of SeenPostIDs, oldest first
	seenOrder []string
	extra     map[string]json.RawMessage
}

func New() *RunState {
	return &RunState{
		SeenPostIDs: make(map[string]bool),
		RateState:   make(ratelimit.State),
		DailyCounts: make(map[string]int),
		extra:       make(map[string]json.RawMessage),
	}
}

func (s *RunState) Seen(postID string) bool {
	return s.SeenPostIDs[postID]
}

// MarkSeen records postID, evicting the oldest IDs beyond MaxSeenPosts.
func (s *RunState) MarkSeen(postID string) {
	if s.SeenPostIDs == nil {
		s.SeenPostIDs = make(map[string]bool)
	}
	if s.SeenPostIDs[postID] {
		return
	}
	s.SeenPostIDs[postID] = true
	s.seenOrder = append(s.seenOrder, postID)
	s.trimSeen()
}

func (s *RunState) trimSeen() {
	over := len(s.seenOrder) - MaxSeenPosts
	if over <= 0 {
		return
	}
	for _, id := range s.seenOrder[:over] {
		delete(s.SeenPostIDs, id)
	}
	s.seenOrder = s.seenOrder[over:]
}

// seenIDs lists the seen set oldest first. IDs added to the map directly come
// last, sorted.
func (s *RunState) seenIDs() []string {
	out := make([]string, 0, len(s.SeenPostIDs))
	listed := make(map[string]bool, len(s.seenOrder))
	for _, id := range s.seenOrder {
		if s.SeenPostIDs[id] && !listed[id] {
			out = append(out, id)
			listed[id] = true
		}
	}
	var rest []string
	for id, ok := range s.SeenPostIDs {
		if ok && !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Clone returns a deep copy, so a cycle can work on a private copy and commit
// it only when complete.
func (s *RunState) Clone() *RunState {
	out := New()
	for _, id := range s.seenIDs() {
		out.MarkSeen(id)
	}
	for k, v := range s.RateState {
		out.RateState[k] = append([]float64(nil), v...)
	}
	for k, v := range s.DailyCounts {
		out.DailyCounts[k] = v
	}
	for k, v := range s.extra {
		out.extra[k] = append(json.RawMessage(nil), v...)
	}
	out.BudgetState = s.BudgetState
	out.LastKnownMetric = s.LastKnownMetric
	out.UpdatedAt = s.UpdatedAt
	return out
}

// wire format
type document struct {
	SeenPostIDs     []string        `json:"seen_post_ids"`
	RateState       ratelimit.State `json:"rate_state"`
	BudgetState     budget.State    `json:"budget_state"`
	LastKnownMetric int             `json:"last_known_metric"`
	DailyCounts     map[string]int  `json:"daily_counts,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

func (s *RunState) MarshalJSON() ([]byte, error) {
	doc := document{
		SeenPostIDs:     s.seenIDs(),
		RateState:       s.RateState,
		BudgetState:     s.BudgetState,
		LastKnownMetric: s.LastKnownMetric,
		DailyCounts:     s.DailyCounts,
	}
	if doc.RateState == nil {
		doc.RateState = ratelimit.State{}
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt.UTC()
		doc.UpdatedAt = &t
	}

	known, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if len(s.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(s.extra)+len(knownKeys))
	for k, v := range s.extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (s *RunState) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("decoding run state: %w", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decoding run state: %w", err)
	}

	*s = *New()
	for _, id := range doc.SeenPostIDs {
		s.MarkSeen(id)
	}
	if doc.RateState != nil {
		s.RateState = doc.RateState
	}
	if doc.DailyCounts != nil {
		s.DailyCounts = doc.DailyCounts
	}
	s.BudgetState = doc.BudgetState
	s.LastKnownMetric = doc.LastKnownMetric
	if doc.UpdatedAt != nil {
		s.UpdatedAt = *doc.UpdatedAt
	}
	for k, v := range fields {
		if !knownKeys[k] {
			s.extra[k] = v
		}
	}
	return nil
}
