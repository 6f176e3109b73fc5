package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterWindow(t *testing.T) {
	assert := assert.New(t)
	clk := newFakeClock()
	l := New(map[string]Limit{"post": {Limit: 5, Window: 24 * time.Hour}}, nil, WithClock(clk.Now))

	for i := 0; i < 5; i++ {
		res := l.Check("post")
		assert.True(res.Allowed, "attempt %d", i)
		assert.Equal(i, res.Count)
		l.Record("post")
		clk.Advance(time.Minute)
	}

	res := l.Check("post")
	assert.False(res.Allowed)
	assert.Equal(5, res.Count)
	assert.Equal(5, res.Limit)
	// oldest entry was recorded five minutes ago
	assert.Equal(24*time.Hour-5*time.Minute, res.RetryAfter)

	clk.Advance(res.RetryAfter)
	res = l.Check("post")
	assert.True(res.Allowed)
	assert.Equal(4, res.Count)
}

func TestLimiterCooldown(t *testing.T) {
	assert := assert.New(t)
	clk := newFakeClock()
	l := New(map[string]Limit{"comment": {Limit: 50, Window: 24 * time.Hour, Cooldown: 20 * time.Second}}, nil, WithClock(clk.Now))

	l.Record("comment")
	clk.Advance(5 * time.Second)

	res := l.Check("comment")
	assert.False(res.Allowed)
	assert.Equal(15*time.Second, res.RetryAfter)
	assert.Contains(res.Message, "cooldown")

	clk.Advance(15 * time.Second)
	assert.True(l.Check("comment").Allowed)
}

func TestLimiterDefaults(t *testing.T) {
	assert := assert.New(t)
	defaults := DefaultLimits()

	assert.Equal(Limit{Limit: 5, Window: 24 * time.Hour, Cooldown: 30 * time.Minute}, defaults[ActionPost])
	assert.Equal(Limit{Limit: 50, Window: 24 * time.Hour, Cooldown: 20 * time.Second}, defaults[ActionComment])
	assert.Equal(100, defaults[ActionRequest].Limit)
	assert.Equal(time.Minute, defaults[ActionRequest].Window)
	for name, cfg := range defaults {
		assert.NoError(cfg.Validate(), name)
	}
}

func TestLimiterUnknownAction(t *testing.T) {
	assert := assert.New(t)
	l := New(DefaultLimits(), nil)

	res := l.Check("teleport")
	assert.True(res.Allowed)
	assert.Zero(res.Limit)

	_, ok := l.Status("teleport")
	assert.False(ok)
}

func TestLimiterCheckAndRecord(t *testing.T) {
	assert := assert.New(t)
	clk := newFakeClock()
	l := New(map[string]Limit{"vote": {Limit: 10, Window: time.Hour}}, nil, WithClock(clk.Now))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecord("vote").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(10, allowed)
	st, ok := l.Status("vote")
	assert.True(ok)
	assert.Equal(10, st.Count)
	assert.Equal(0, st.Remaining)
	assert.Equal(time.Hour, st.ResetsIn)
}

func TestLimiterSnapshotRoundTrip(t *testing.T) {
	assert := assert.New(t)
	clk := newFakeClock()
	limits := map[string]Limit{"post": {Limit: 2, Window: time.Hour}}

	l := New(limits, nil, WithClock(clk.Now))
	l.Record("post")
	clk.Advance(time.Second)
	l.Record("post")
	snap := l.Snapshot()
	assert.Len(snap["post"], 2)

	// a restart must not reset the window
	restored := New(limits, snap, WithClock(clk.Now))
	assert.False(restored.Check("post").Allowed)

	// entries older than the longest window are dropped on load
	clk.Advance(2 * time.Hour)
	restored = New(limits, snap, WithClock(clk.Now))
	assert.Empty(restored.Snapshot())
	assert.True(restored.Check("post").Allowed)
}

func TestLimiterPrunesOnDeniedCheck(t *testing.T) {
	assert := assert.New(t)
	clk := newFakeClock()
	l := New(map[string]Limit{"post": {Limit: 1, Window: time.Hour, Cooldown: 2 * time.Hour}}, nil, WithClock(clk.Now))

	l.Record("post")
	clk.Advance(90 * time.Minute)

	// window has expired but the cooldown has not; the expired entry is
	// pruned, so the cooldown no longer applies
	res := l.Check("post")
	assert.True(res.Allowed)
	assert.Equal(0, res.Count)
}

func TestLimiterResetAndSetLimit(t *testing.T) {
	assert := assert.New(t)
	clk := newFakeClock()
	l := New(map[string]Limit{"post": {Limit: 1, Window: time.Hour}}, nil, WithClock(clk.Now))

	l.Record("post")
	assert.False(l.Check("post").Allowed)

	l.Reset("post")
	assert.True(l.Check("post").Allowed)

	assert.Error(l.SetLimit("dm", Limit{Limit: 0, Window: time.Hour}))
	assert.Error(l.SetLimit("dm", Limit{Limit: 1}))
	assert.NoError(l.SetLimit("dm", Limit{Limit: 3, Window: time.Minute}))

	l.Record("dm")
	l.Record("post")
	l.Reset("")
	assert.Empty(l.Snapshot())

	all := l.StatusAll()
	assert.Len(all, 2)
	assert.Equal("dm", all[0].Action)
	assert.Equal("post", all[1].Action)
}
