package agent

import (
	"context"
	"time"

	"github.com/moltguard/moltguard/agent/countstore"
	"github.com/moltguard/moltguard/budget"
	"github.com/moltguard/moltguard/ratelimit"
)

// Status is a read-only snapshot for operators.
type Status struct {
	Name           string             `json:"name"`
	Model          string             `json:"model"`
	Communities    []string           `json:"communities"`
	Budget         budget.Status      `json:"budget"`
	BudgetWarnings []string           `json:"budget_warnings,omitempty"`
	Projection     budget.Estimate    `json:"projection"`
	RateLimits     []ratelimit.Status `json:"rate_limits"`
	CommentsToday  int                `json:"comments_today"`
	PostsToday     int                `json:"posts_today"`
	SeenPosts      int                `json:"seen_posts"`
	Metric         int                `json:"metric"`
	UpdatedAt      time.Time          `json:"updated_at"`
	LastCycle      *CycleStats        `json:"last_cycle,omitempty"`
}

func (a *Agent) Status(ctx context.Context) Status {
	s := Status{
		Name:           a.cfg.Name,
		Model:          a.cfg.Model,
		Communities:    a.cfg.Communities,
		Budget:         a.governor.CheckBudget(),
		BudgetWarnings: a.governor.Warnings(),
		Projection:     a.governor.Estimate(a.projectedActivity()),
		RateLimits:     a.limiter.StatusAll(),
	}
	s.CommentsToday, _ = a.counters.GetCount(ctx, countAction, ratelimit.ActionComment, countstore.PeriodDay)
	s.PostsToday, _ = a.counters.GetCount(ctx, countAction, ratelimit.ActionPost, countstore.PeriodDay)

	a.mu.Lock()
	defer a.mu.Unlock()
	s.SeenPosts = len(a.st.SeenPostIDs)
	s.Metric = a.st.LastKnownMetric
	s.UpdatedAt = a.st.UpdatedAt
	if a.lastCycle != nil {
		lc := *a.lastCycle
		lc.Decisions = nil
		s.LastCycle = &lc
	}
	return s
}

// projectedActivity is posts, comments and reads per day at the configured
// caps and poll interval.
func (a *Agent) projectedActivity() (int, int, int) {
	posts := a.cfg.PostsPerDay
	if a.cfg.PostProbability == 0 {
		posts = 0
	}
	cycles := int((24*time.Hour + a.cfg.PollInterval - 1) / a.cfg.PollInterval)
	return posts, a.cfg.CommentsPerDay, a.cfg.FetchLimit * len(a.cfg.Communities) * cycles
}
