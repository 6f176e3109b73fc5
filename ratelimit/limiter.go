// Sliding-window rate limiter over named actions, with an optional cooldown
// between consecutive actions.
//
// State is a plain map of action name to chronological timestamps, so it can
// be persisted by the caller and handed back on the next start. This prevents
// a restart from resetting limits.
package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	ActionPost    = "post"
	ActionComment = "comment"
	ActionRequest = "request"
	ActionVote    = "vote"
	ActionAPICall = "api_call"
)

// Limit configures one action: at most Limit occurrences per Window, and at
// least Cooldown between consecutive occurrences. Cooldown may be zero.
type Limit struct {
	Limit    int           `json:"limit" yaml:"limit"`
	Window   time.Duration `json:"window" yaml:"window"`
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`
}

func (l Limit) Validate() error {
	if l.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if l.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if l.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	return nil
}

// DefaultLimits mirrors the platform's published limits.
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		ActionPost:    {Limit: 5, Window: 24 * time.Hour, Cooldown: 30 * time.Minute},
		ActionComment: {Limit: 50, Window: 24 * time.Hour, Cooldown: 20 * time.Second},
		ActionRequest: {Limit: 100, Window: time.Minute},
		ActionVote:    {Limit: 100, Window: time.Hour, Cooldown: time.Second},
		ActionAPICall: {Limit: 1000, Window: time.Hour},
	}
}

// State maps action name to chronological unix timestamps (fractional seconds).
type State map[string][]float64

// Result of a Check. Denials are values, not errors.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Action     string        `json:"action"`
	Count      int           `json:"count"`
	Limit      int           `json:"limit"`
	RetryAfter time.Duration `json:"retry_after"`
	Message    string        `json:"message"`
}

// Status is a read-only view of one action's window.
type Status struct {
	Action   string        `json:"action"`
	Count    int           `json:"count"`
	Limit    int           `json:"limit"`
	Window   time.Duration `json:"window"`
	Cooldown time.Duration `json:"cooldown"`
	// Remaining is the number of actions still allowed in the current window.
	Remaining int `json:"remaining"`
	// ResetsIn is how long until the oldest entry leaves the window.
	ResetsIn time.Duration `json:"resets_in"`
}

type Option func(*Limiter)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter is safe for concurrent use. CheckAndRecord is atomic.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	actions map[string][]time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a limiter with the given per-action limits, seeded from a
// previously persisted State. Entries older than the longest configured
// window are dropped on load.
func New(limits map[string]Limit, st State, opts ...Option) *Limiter {
	l := &Limiter{
		limits:  make(map[string]Limit, len(limits)),
		actions: make(map[string][]time.Time),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for k, v := range limits {
		l.limits[k] = v
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With("component", "ratelimit")

	for action, stamps := range st {
		ts := make([]time.Time, 0, len(stamps))
		for _, s := range stamps {
			ts = append(ts, fromUnix(s))
		}
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		l.actions[action] = ts
	}
	l.cleanup()
	return l
}

// Check reports whether action is currently allowed. Expired timestamps are
// pruned as a side effect, regardless of the outcome. Unknown actions are
// always allowed.
func (l *Limiter) Check(action string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(action)
}

func (l *Limiter) check(action string) Result {
	cfg, ok := l.limits[action]
	if !ok {
		l.logger.Warn("unknown rate limit action, not limiting", "action", action)
		return Result{
			Allowed: true,
			Action:  action,
			Message: "unknown action type: no limit applied",
		}
	}

	now := l.now()
	recent := l.prune(action, now.Add(-cfg.Window))
	count := len(recent)

	if count >= cfg.Limit {
		oldest := recent[0]
		return Result{
			Allowed:    false,
			Action:     action,
			Count:      count,
			Limit:      cfg.Limit,
			RetryAfter: positive(oldest.Add(cfg.Window).Sub(now)),
			Message:    fmt.Sprintf("rate limit exceeded: %d/%d in %s", count, cfg.Limit, cfg.Window),
		}
	}

	if cfg.Cooldown > 0 && count > 0 {
		last := recent[count-1]
		elapsed := now.Sub(last)
		if elapsed < cfg.Cooldown {
			return Result{
				Allowed:    false,
				Action:     action,
				Count:      count,
				Limit:      cfg.Limit,
				RetryAfter: cfg.Cooldown - elapsed,
				Message:    fmt.Sprintf("cooldown active: wait %s between %s actions", cfg.Cooldown-elapsed, action),
			}
		}
	}

	return Result{
		Allowed: true,
		Action:  action,
		Count:   count,
		Limit:   cfg.Limit,
		Message: fmt.Sprintf("allowed: %d/%d used", count, cfg.Limit),
	}
}

// Record notes that action happened now. Callers should record only after the
// gated action succeeded.
func (l *Limiter) Record(action string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(action)
}

func (l *Limiter) record(action string) {
	l.actions[action] = append(l.actions[action], l.now())
}

// CheckAndRecord atomically checks and, if allowed, records the action.
func (l *Limiter) CheckAndRecord(action string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.check(action)
	if res.Allowed {
		l.record(action)
	}
	return res
}

// Status returns the current window for a configured action.
func (l *Limiter) Status(action string) (Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cfg, ok := l.limits[action]
	if !ok {
		return Status{}, false
	}
	now := l.now()
	windowStart := now.Add(-cfg.Window)
	var recent []time.Time
	for _, t := range l.actions[action] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	st := Status{
		Action:    action,
		Count:     len(recent),
		Limit:     cfg.Limit,
		Window:    cfg.Window,
		Cooldown:  cfg.Cooldown,
		Remaining: cfg.Limit - len(recent),
	}
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	if len(recent) > 0 {
		st.ResetsIn = positive(recent[0].Add(cfg.Window).Sub(now))
	}
	return st, true
}

// StatusAll returns Status for every configured action, sorted by name.
func (l *Limiter) StatusAll() []Status {
	l.mu.Lock()
	names := make([]string, 0, len(l.limits))
	for k := range l.limits {
		names = append(names, k)
	}
	l.mu.Unlock()
	sort.Strings(names)

	out := make([]Status, 0, len(names))
	for _, n := range names {
		if st, ok := l.Status(n); ok {
			out = append(out, st)
		}
	}
	return out
}

// Reset clears recorded history for one action, or all actions if action is empty.
func (l *Limiter) Reset(action string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if action == "" {
		l.actions = make(map[string][]time.Time)
		return
	}
	delete(l.actions, action)
}

// SetLimit adds or replaces the configuration for an action.
func (l *Limiter) SetLimit(action string, cfg Limit) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid limit for %q: %w", action, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[action] = cfg
	return nil
}

// Snapshot returns a copy of the current state suitable for persistence.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanup()
	out := make(State, len(l.actions))
	for action, ts := range l.actions {
		stamps := make([]float64, len(ts))
		for i, t := range ts {
			stamps[i] = toUnix(t)
		}
		out[action] = stamps
	}
	return out
}

// prune drops entries at or before windowStart and returns what remains.
func (l *Limiter) prune(action string, windowStart time.Time) []time.Time {
	ts := l.actions[action]
	i := 0
	for i < len(ts) && !ts[i].After(windowStart) {
		i++
	}
	if i > 0 {
		ts = append([]time.Time(nil), ts[i:]...)
		l.actions[action] = ts
	}
	return ts
}

// cleanup removes entries older than the longest configured window, and
// empty actions. Must be called with mu held (or during construction).
func (l *Limiter) cleanup() {
	var maxWindow time.Duration
	for _, cfg := range l.limits {
		if cfg.Window > maxWindow {
			maxWindow = cfg.Window
		}
	}
	if maxWindow == 0 {
		return
	}
	cutoff := l.now().Add(-maxWindow)
	for action := range l.actions {
		l.prune(action, cutoff)
		if len(l.actions[action]) == 0 {
			delete(l.actions, action)
		}
	}
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
