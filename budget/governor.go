// Tracks model spend against optional daily and monthly ceilings.
//
// Period resets are lazy: every call compares the current local day and
// month with the stored markers, and zeroes the matching bucket before doing
// anything else. Exceeding a ceiling is a soft gate, reported through
// Status.BudgetOK, never an error.
package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrUnknownModel = errors.New("unknown model")

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// WarnFraction is the share of a ceiling at which a warning is raised.
const WarnFraction = 0.8

// State is the persisted portion of the governor.
type State struct {
	CostToday      float64 `json:"cost_today"`
	CostMonth      float64 `json:"cost_month"`
	LastResetDay   string  `json:"last_reset_day"`
	LastResetMonth string  `json:"last_reset_month"`
}

// Status is a point-in-time view. Limit and remaining fields are nil when no
// ceiling is configured.
type Status struct {
	Model            string   `json:"model"`
	Today            float64  `json:"today"`
	Month            float64  `json:"month"`
	DailyLimit       *float64 `json:"daily_limit"`
	MonthlyLimit     *float64 `json:"monthly_limit"`
	DailyRemaining   *float64 `json:"daily_remaining"`
	MonthlyRemaining *float64 `json:"monthly_remaining"`
	BudgetOK         bool     `json:"budget_ok"`
}

type Option func(*Governor)

func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// WithLimits sets the initial ceilings. A nil pointer means unbounded.
func WithLimits(daily, monthly *float64) Option {
	return func(g *Governor) {
		g.dailyLimit = daily
		g.monthlyLimit = monthly
	}
}

// Governor is safe for concurrent use.
type Governor struct {
	mu           sync.Mutex
	model        string
	price        Price
	state        State
	dailyLimit   *float64
	monthlyLimit *float64
	now          func() time.Time
	logger       *slog.Logger
}

// New returns a governor for model, resuming from a persisted State. An
// unknown model is a configuration error.
func New(model string, st State, opts ...Option) (*Governor, error) {
	price, err := PriceFor(model)
	if err != nil {
		return nil, err
	}
	g := &Governor{
		model:  model,
		price:  price,
		state:  st,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.With("component", "budget", "model", model)
	return g, nil
}

func (g *Governor) Model() string {
	return g.model
}

// TrackUsage records the cost of one model call and returns it.
func (g *Governor) TrackUsage(inputTokens, outputTokens int) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset()

	cost := g.price.Cost(inputTokens, outputTokens)
	g.state.CostToday += cost
	g.state.CostMonth += cost
	g.logger.Debug("tracked model usage", "input_tokens", inputTokens, "output_tokens", outputTokens, "cost", cost, "today", g.state.CostToday)
	return cost
}

// CheckBudget reports current spend and whether generation may proceed.
func (g *Governor) CheckBudget() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset()
	return g.status()
}

func (g *Governor) status() Status {
	st := Status{
		Model:        g.model,
		Today:        g.state.CostToday,
		Month:        g.state.CostMonth,
		DailyLimit:   copyPtr(g.dailyLimit),
		MonthlyLimit: copyPtr(g.monthlyLimit),
		BudgetOK:     true,
	}
	if g.dailyLimit != nil {
		rem := *g.dailyLimit - g.state.CostToday
		st.DailyRemaining = &rem
		if rem <= 0 {
			st.BudgetOK = false
		}
	}
	if g.monthlyLimit != nil {
		rem := *g.monthlyLimit - g.state.CostMonth
		st.MonthlyRemaining = &rem
		if rem <= 0 {
			st.BudgetOK = false
		}
	}
	return st
}

// SetBudget replaces both ceilings. A nil pointer removes that ceiling.
func (g *Governor) SetBudget(daily, monthly *float64) error {
	if daily != nil && *daily < 0 {
		return fmt.Errorf("daily limit must not be negative: %v", *daily)
	}
	if monthly != nil && *monthly < 0 {
		return fmt.Errorf("monthly limit must not be negative: %v", *monthly)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyLimit = copyPtr(daily)
	g.monthlyLimit = copyPtr(monthly)
	return nil
}

// Warnings lists human-readable notices for ceilings that are close to or
// past exhaustion.
func (g *Governor) Warnings() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset()

	var out []string
	if g.dailyLimit != nil && *g.dailyLimit > 0 {
		switch {
		case g.state.CostToday >= *g.dailyLimit:
			out = append(out, "daily budget exceeded")
		case g.state.CostToday >= *g.dailyLimit*WarnFraction:
			out = append(out, fmt.Sprintf("approaching daily limit: $%.2f of $%.2f", g.state.CostToday, *g.dailyLimit))
		}
	}
	if g.monthlyLimit != nil && *g.monthlyLimit > 0 {
		switch {
		case g.state.CostMonth >= *g.monthlyLimit:
			out = append(out, "monthly budget exceeded")
		case g.state.CostMonth >= *g.monthlyLimit*WarnFraction:
			out = append(out, fmt.Sprintf("approaching monthly limit: $%.2f of $%.2f", g.state.CostMonth, *g.monthlyLimit))
		}
	}
	return out
}

// Estimate projects cost for an activity profile with this governor's model.
func (g *Governor) Estimate(postsPerDay, commentsPerDay, readsPerDay int) Estimate {
	// model was validated in New
	est, _ := EstimateCost(g.model, postsPerDay, commentsPerDay, readsPerDay)
	return est
}

// Snapshot returns the persistable state, after applying any pending reset.
func (g *Governor) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset()
	return g.state
}

// maybeReset zeroes buckets whose period marker is stale. Must hold mu.
func (g *Governor) maybeReset() {
	now := g.now().Local()
	day := now.Format(dayLayout)
	month := now.Format(monthLayout)

	if g.state.LastResetDay != day {
		if g.state.LastResetDay != "" {
			g.logger.Info("daily budget period rolled over", "previous", g.state.LastResetDay, "spent", g.state.CostToday)
		}
		g.state.CostToday = 0
		g.state.LastResetDay = day
	}
	if g.state.LastResetMonth != month {
		if g.state.LastResetMonth != "" {
			g.logger.Info("monthly budget period rolled over", "previous", g.state.LastResetMonth, "spent", g.state.CostMonth)
		}
		g.state.CostMonth = 0
		g.state.LastResetMonth = month
	}
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float is a helper for building optional limits.
func Float(v float64) *float64 {
	return &v
}
