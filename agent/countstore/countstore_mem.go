package countstore

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// MemCountStore keeps counters in process. Snapshot and NewMemCountStoreFrom
// let the counts ride along in the agent state file.
type MemCountStore struct {
	mu     sync.Mutex
	counts map[string]int
	now    func() time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return NewMemCountStoreFrom(nil, nil)
}

// NewMemCountStoreFrom seeds a store from a previous Snapshot. A nil clock
// means time.Now.
func NewMemCountStoreFrom(seed map[string]int, now func() time.Time) *MemCountStore {
	if now == nil {
		now = time.Now
	}
	s := &MemCountStore{
		counts: make(map[string]int, len(seed)),
		now:    now,
	}
	for k, v := range seed {
		s.counts[k] = v
	}
	return s
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val string, period Period) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[BucketKey(s.now(), name, val, period)], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string, periods ...Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, p := range periodsOrDefault(periods) {
		s.counts[BucketKey(now, name, val, p)]++
	}
	return nil
}

var dayBucketSuffix = regexp.MustCompile(`/\d{4}-\d{2}-\d{2}$`)

// Snapshot returns today's day buckets and every total bucket. Day buckets
// from earlier days are dropped, here and from the store.
func (s *MemCountStore) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := "/" + s.now().Local().Format(time.DateOnly)
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		if loc := dayBucketSuffix.FindStringIndex(k); loc != nil && k[loc[0]:] != today {
			delete(s.counts, k)
			continue
		}
		out[k] = v
	}
	return out
}
