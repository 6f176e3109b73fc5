// Named string sets, used for the blocked-author list and for extra
// known-attack literals handed to the scanner.
package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	SetBlockedAuthors = "blocked-authors"
	SetKnownAttacks   = "known-attacks"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

// MemSetStore matches values case-insensitively.
type MemSetStore struct {
	mu   sync.RWMutex
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: returns false when entire set isn't found
		return false, nil
	}
	return set[strings.ToLower(val)], nil
}

// Add inserts values into the named set, creating it if needed.
func (s *MemSetStore) Add(name string, vals ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.Sets[name]
	if !ok {
		set = make(map[string]bool, len(vals))
		s.Sets[name] = set
	}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			set[strings.ToLower(v)] = true
		}
	}
}

// Members returns the sorted (lower-cased) members of a set.
func (s *MemSetStore) Members(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.Sets[name]))
	for v := range s.Sets[name] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// LoadFromFileJSON reads a JSON object of set name to array of values. Sets
// present in the file replace any existing set of the same name.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return fmt.Errorf("parsing set file %s: %w", p, err)
	}

	s.mu.Lock()
	for name := range sets {
		delete(s.Sets, name)
	}
	s.mu.Unlock()
	for name, l := range sets {
		s.Add(name, l...)
	}
	return nil
}
