package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/moltguard/moltguard/activity"
	"github.com/moltguard/moltguard/agent/cachestore"
	"github.com/moltguard/moltguard/agent/countstore"
	"github.com/moltguard/moltguard/agent/setstore"
	"github.com/moltguard/moltguard/budget"
	"github.com/moltguard/moltguard/llm"
	"github.com/moltguard/moltguard/platform"
	"github.com/moltguard/moltguard/ratelimit"
	"github.com/moltguard/moltguard/scanner"
	"github.com/moltguard/moltguard/state"
)

// counter names in the CountStore
const (
	countAction      = "action"
	countAuthor      = "author"
	countRepliedPost = "replied-post"
)

type Platform interface {
	FetchPosts(ctx context.Context, community, sort string, limit int) ([]platform.Post, error)
	CreateComment(ctx context.Context, postID, content string) (*platform.Comment, error)
	CreatePost(ctx context.Context, community, title, content string) (*platform.Post, error)
	GetKarma(ctx context.Context) (int, error)
}

type Model interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

type StateStore interface {
	Save(ctx context.Context, st *state.RunState) error
}

type ActivityLog interface {
	RecordDecision(ctx context.Context, d *activity.Decision) error
	RecordCycle(ctx context.Context, c *activity.Cycle) error
}

var (
	_ Platform    = (*platform.Client)(nil)
	_ Model       = (*llm.Client)(nil)
	_ StateStore  = (*state.Store)(nil)
	_ ActivityLog = (*activity.Store)(nil)
)

// Deps are the agent's collaborators. Platform, Model and Store are required;
// everything else has an in-memory or no-op default.
type Deps struct {
	Platform Platform
	Model    Model
	Store    StateStore

	// State is the run state loaded at startup. nil starts fresh.
	State    *state.RunState
	Scanner  *scanner.Scanner
	Counters countstore.CountStore
	Cache    cachestore.CacheStore
	Sets     setstore.SetStore
	Notifier Notifier
	Activity ActivityLog
	Logger   *slog.Logger

	// test hooks
	Clock func() time.Time
	Rand  func() float64
	Sleep func(ctx context.Context, d time.Duration) error
}

// Agent runs the fetch → scan → decide → generate → post loop. RunOnce and
// Run must not be called concurrently; Status is safe to call at any time.
type Agent struct {
	cfg          Config
	systemPrompt string

	platform  Platform
	model     Model
	store     StateStore
	scanner   *scanner.Scanner
	limiter   *ratelimit.Limiter
	governor  *budget.Governor
	counters  countstore.CountStore
	memCounts *countstore.MemCountStore
	cache     cachestore.CacheStore
	sets      setstore.SetStore
	notifier  Notifier
	activity  ActivityLog
	logger    *slog.Logger

	now   func() time.Time
	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error

	// guards committed state and lastCycle, which Status reads
	mu        sync.Mutex
	st        *state.RunState
	lastCycle *CycleStats
	// period key of the last budget warning sent, by budget kind
	warned map[string]string
}

func New(cfg Config, deps Deps) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Platform == nil {
		return nil, fmt.Errorf("%w: no platform client", ErrConfiguration)
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("%w: no model client", ErrConfiguration)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: no state store", ErrConfiguration)
	}
	if err := cfg.loadPersona(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("agent", cfg.Name)

	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	st := deps.State
	if st == nil {
		st = state.New()
	}

	gov, err := budget.New(cfg.Model, st.BudgetState,
		budget.WithLimits(cfg.DailyBudget, cfg.MonthlyBudget),
		budget.WithClock(now),
		budget.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	a := &Agent{
		cfg:          cfg,
		systemPrompt: cfg.SystemPrompt(),
		platform:     deps.Platform,
		model:        deps.Model,
		store:        deps.Store,
		scanner:      deps.Scanner,
		limiter:      ratelimit.New(cfg.limits(), st.RateState, ratelimit.WithClock(now), ratelimit.WithLogger(logger)),
		governor:     gov,
		counters:     deps.Counters,
		cache:        deps.Cache,
		sets:         deps.Sets,
		notifier:     deps.Notifier,
		activity:     deps.Activity,
		logger:       logger,
		now:          now,
		rand:         deps.Rand,
		sleep:        deps.Sleep,
		st:           st,
		warned:       make(map[string]string),
	}

	if a.counters == nil {
		a.counters = countstore.NewMemCountStoreFrom(st.DailyCounts, now)
	}
	// only in-process counters need to ride along in the state file
	if mc, ok := a.counters.(*countstore.MemCountStore); ok {
		a.memCounts = mc
	}
	if a.sets == nil {
		a.sets = setstore.NewMemSetStore()
	}
	if a.scanner == nil {
		var extra []string
		if ms, ok := a.sets.(*setstore.MemSetStore); ok {
			extra = ms.Members(setstore.SetKnownAttacks)
		}
		a.scanner = scanner.New(scanner.Options{Strict: cfg.Strict, ExtraAttacks: extra, Logger: logger})
	}
	if a.cache == nil {
		a.cache = cachestore.NewMemCacheStore(10_000, 24*time.Hour)
	}
	if a.notifier == nil {
		a.notifier = NopNotifier{}
	}
	if a.rand == nil {
		a.rand = rand.Float64
	}
	if a.sleep == nil {
		a.sleep = sleepCtx
	}
	return a, nil
}

// Run executes cycles until ctx is cancelled, sleeping PollInterval between
// them. Cycle failures are logged and reported; Run returns nil once ctx is
// cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.notify(ctx, EventStartup, map[string]any{
		"agent":       a.cfg.Name,
		"communities": strings.Join(a.cfg.Communities, ", "),
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.notify(sctx, EventShutdown, map[string]any{"agent": a.cfg.Name, "reason": "stopped"})
	}()

	for {
		stats, err := a.RunOnce(ctx)
		if ctx.Err() != nil {
			a.logger.Info("agent loop stopping", "reason", ctx.Err())
			return nil
		}
		if err != nil {
			a.logger.Error("cycle failed", "err", err, "cycle", stats.CycleID)
			a.notify(ctx, EventError, map[string]any{"type": "cycle", "message": err.Error()})
		}
		if stats.Active() {
			b := a.governor.CheckBudget()
			a.notify(ctx, EventCycleComplete, map[string]any{
				"posts_read":      stats.PostsFetched,
				"comments_made":   stats.CommentsMade,
				"posts_made":      stats.PostsMade,
				"attacks_blocked": stats.AttacksBlocked,
				"cost_today":      b.Today,
				"cost_month":      b.Month,
			})
		}
		a.checkBudgetWarnings(ctx)

		a.logger.Debug("sleeping until next cycle", "interval", a.cfg.PollInterval)
		if err := a.sleep(ctx, a.cfg.PollInterval); err != nil {
			a.logger.Info("agent loop stopping", "reason", err)
			return nil
		}
	}
}

// RunOnce executes one full cycle and persists state exactly once at the end.
// When ctx is cancelled mid-cycle the cycle is abandoned without persisting.
func (a *Agent) RunOnce(ctx context.Context) (CycleStats, error) {
	ctx, span := otel.Tracer("agent").Start(ctx, "RunOnce")
	defer span.End()

	start := a.now()
	stats := CycleStats{
		CycleID:   uuid.NewString(),
		StartedAt: start,
	}
	span.SetAttributes(attribute.String("cycle", stats.CycleID))
	logger := a.logger.With("cycle", stats.CycleID)

	a.mu.Lock()
	work := a.st.Clone()
	a.mu.Unlock()

	c := &cycle{
		agent:  a,
		stats:  &stats,
		st:     work,
		logger: logger,
		// total time this cycle may spend waiting on rate limits
		stallLeft: a.cfg.MaxStall,
	}

	for _, community := range a.cfg.Communities {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		c.processCommunity(ctx, community)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if karma, err := a.platform.GetKarma(ctx); err != nil {
		logger.Warn("failed to refresh karma", "err", err)
	} else {
		work.LastKnownMetric = karma
		karmaGauge.Set(float64(karma))
	}
	stats.Metric = work.LastKnownMetric

	err := a.persist(ctx, work)
	stats.FinishedAt = a.now()

	a.mu.Lock()
	a.st = work
	a.lastCycle = &stats
	a.mu.Unlock()

	cycleCount.Inc()
	cycleDuration.Observe(stats.FinishedAt.Sub(start).Seconds())
	a.recordCycle(ctx, &stats)
	logger.Info("cycle complete",
		"fetched", stats.PostsFetched,
		"scanned", stats.PostsScanned,
		"blocked", stats.AttacksBlocked,
		"comments", stats.CommentsMade,
		"posts", stats.PostsMade,
		"cost", stats.Cost,
		"metric", stats.Metric,
	)
	return stats, err
}

func (a *Agent) persist(ctx context.Context, work *state.RunState) error {
	work.RateState = a.limiter.Snapshot()
	work.BudgetState = a.governor.Snapshot()
	if a.memCounts != nil {
		work.DailyCounts = a.memCounts.Snapshot()
	}
	work.UpdatedAt = a.now().UTC()
	if err := a.store.Save(ctx, work); err != nil {
		persistErrorCount.Inc()
		return fmt.Errorf("persisting run state: %w", err)
	}
	return nil
}

// cycle carries per-cycle working state.
type cycle struct {
	agent     *Agent
	stats     *CycleStats
	st        *state.RunState
	logger    *slog.Logger
	stallLeft time.Duration
}

func (c *cycle) processCommunity(ctx context.Context, community string) {
	a := c.agent
	posts, err := a.platform.FetchPosts(ctx, community, a.cfg.FetchSort, a.cfg.FetchLimit)
	if err != nil {
		c.stats.FetchErrors++
		fetchErrorCount.WithLabelValues(community).Inc()
		c.logger.Error("failed to fetch posts", "community", community, "err", err)
		return
	}
	c.stats.PostsFetched += len(posts)
	postsFetched.WithLabelValues(community).Add(float64(len(posts)))

	for i := range posts {
		if ctx.Err() != nil {
			return
		}
		p := &posts[i]
		if p.ID == "" || c.st.Seen(p.ID) {
			c.stats.AlreadySeen++
			continue
		}
		c.processPost(ctx, p)
	}

	if a.cfg.PostProbability > 0 && ctx.Err() == nil {
		c.maybeCreatePost(ctx, community)
	}
}

func (c *cycle) processPost(ctx context.Context, p *platform.Post) {
	d := Decision{
		PostID:    p.ID,
		Community: p.Community,
		Author:    p.Author,
	}
	// similar to an HTTP server, we want to recover any panics from one post
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("post processing exception", "err", r, "post", p.ID)
			d.Outcome = OutcomePostFailed
			d.Reason = fmt.Sprintf("panic: %v", r)
			c.decide(ctx, d)
		}
	}()

	c.evaluate(ctx, p, &d)
	c.decide(ctx, d)
}

// evaluate walks one unseen post through the gates, filling in d.
func (c *cycle) evaluate(ctx context.Context, p *platform.Post, d *Decision) {
	a := c.agent

	// SCAN_INPUT
	verdict := a.scanInput(ctx, p.Text())
	c.stats.PostsScanned++
	c.st.MarkSeen(p.ID)
	d.RiskLevel = verdict.RiskLevel.String()
	d.Categories = verdict.Categories

	if verdict.IsSuspicious && verdict.RiskLevel >= scanner.RiskHigh {
		c.stats.AttacksBlocked++
		d.Outcome = OutcomeScannerBlocked
		d.Reason = "input scan: " + strings.Join(verdict.Categories, ",")
		a.notify(ctx, EventAttackBlocked, map[string]any{
			"categories": strings.Join(verdict.Categories, ", "),
			"risk_level": verdict.RiskLevel.String(),
			"source":     fmt.Sprintf("post %s by @%s", p.ID, p.Author),
		})
		return
	}

	// ENGAGE_DECISION
	if outcome, reason := c.engagePolicy(ctx, p); outcome != "" {
		d.Outcome = outcome
		d.Reason = reason
		return
	}

	// BUDGET_GATE
	if b := a.governor.CheckBudget(); !b.BudgetOK {
		d.Outcome = OutcomeBudgetExhausted
		d.Reason = fmt.Sprintf("spent $%.4f today, $%.2f this month", b.Today, b.Month)
		return
	}

	// RATE_GATE
	if res := a.limiter.Check(ratelimit.ActionComment); !res.Allowed {
		d.Outcome = OutcomeRateLimited
		d.Reason = res.Message
		c.stall(ctx, res.RetryAfter)
		return
	}

	// GENERATE
	title := a.scanner.Defend(p.Title)
	content := a.scanner.Defend(p.Content)
	draft, cost, err := a.generate(ctx, replyPrompt(p, title, content))
	c.stats.Cost += cost
	d.Cost = cost
	if err != nil {
		d.Outcome = OutcomeGenerateFailed
		d.Reason = err.Error()
		return
	}

	// SCAN_OUTPUT
	if out := a.scanOutput(draft); out.IsSuspicious {
		d.Outcome = OutcomeOutputBlocked
		d.Reason = "output scan: " + strings.Join(out.Categories, ",")
		return
	}

	// POST
	comment, err := a.platform.CreateComment(ctx, p.ID, draft)
	if err != nil {
		if rle, ok := platform.IsRateLimited(err); ok {
			platformThrottled.Inc()
			d.Outcome = OutcomeRateLimited
			d.Reason = rle.Error()
			c.stall(ctx, rle.RetryAfter)
			return
		}
		d.Outcome = OutcomePostFailed
		d.Reason = err.Error()
		return
	}

	a.limiter.Record(ratelimit.ActionComment)
	a.increment(ctx, countAction, ratelimit.ActionComment, countstore.PeriodDay)
	a.increment(ctx, countRepliedPost, p.ID, countstore.PeriodTotal)
	if p.Author != "" {
		a.increment(ctx, countAuthor, strings.ToLower(p.Author), countstore.PeriodDay)
	}
	c.stats.CommentsMade++
	d.Outcome = OutcomeEngaged
	d.Reason = "comment " + comment.ID
	a.notify(ctx, EventCommentCreated, map[string]any{
		"community": p.Community,
		"author":    p.Author,
		"preview":   draft,
	})
}

// engagePolicy returns a non-empty outcome when the post should be skipped.
func (c *cycle) engagePolicy(ctx context.Context, p *platform.Post) (Outcome, string) {
	a := c.agent
	if strings.EqualFold(p.Author, a.cfg.Name) {
		return OutcomeOwnPost, ""
	}
	if n, err := a.counters.GetCount(ctx, countRepliedPost, p.ID, countstore.PeriodTotal); err != nil {
		c.logger.Warn("failed to read reply counter", "err", err, "post", p.ID)
	} else if n > 0 {
		return OutcomeAlreadyHandled, "already replied"
	}
	if p.Author != "" {
		blocked, err := a.sets.InSet(ctx, setstore.SetBlockedAuthors, p.Author)
		if err != nil {
			c.logger.Warn("failed to check blocked authors", "err", err)
		} else if blocked {
			return OutcomeBlockedAuthor, ""
		}
	}

	n, err := a.counters.GetCount(ctx, countAction, ratelimit.ActionComment, countstore.PeriodDay)
	if err != nil {
		// without the counter we cannot prove we are under the cap
		return OutcomeDailyCap, fmt.Sprintf("reading daily counter: %v", err)
	}
	if n >= a.cfg.CommentsPerDay {
		return OutcomeDailyCap, fmt.Sprintf("%d of %d comments today", n, a.cfg.CommentsPerDay)
	}
	if a.cfg.MaxPerAuthorPerDay > 0 && p.Author != "" {
		n, err := a.counters.GetCount(ctx, countAuthor, strings.ToLower(p.Author), countstore.PeriodDay)
		if err == nil && n >= a.cfg.MaxPerAuthorPerDay {
			return OutcomeDailyCap, fmt.Sprintf("%d replies to @%s today", n, p.Author)
		}
	}

	if a.rand() >= a.cfg.EngageProbability {
		return OutcomeRandomSkip, ""
	}
	return "", ""
}

// maybeCreatePost occasionally writes an original post to community. Gate
// denials here are silent; they are not tied to any fetched post.
func (c *cycle) maybeCreatePost(ctx context.Context, community string) {
	a := c.agent
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("post creation exception", "err", r, "community", community)
		}
	}()

	if a.rand() >= a.cfg.PostProbability {
		return
	}
	n, err := a.counters.GetCount(ctx, countAction, ratelimit.ActionPost, countstore.PeriodDay)
	if err != nil || n >= a.cfg.PostsPerDay {
		return
	}
	if !a.governor.CheckBudget().BudgetOK {
		return
	}
	if res := a.limiter.Check(ratelimit.ActionPost); !res.Allowed {
		c.logger.Debug("skipping original post", "community", community, "reason", res.Message)
		return
	}

	draft, cost, err := a.generate(ctx, postPrompt(community))
	c.stats.Cost += cost
	if err != nil {
		c.logger.Warn("failed to draft post", "community", community, "err", err)
		return
	}
	title, content := parseGeneratedPost(draft)
	if title == "" {
		return
	}
	if out := a.scanOutput(title + "\n\n" + content); out.IsSuspicious {
		c.logger.Warn("dropping drafted post", "community", community, "categories", out.Categories)
		return
	}

	post, err := a.platform.CreatePost(ctx, community, title, content)
	if err != nil {
		if rle, ok := platform.IsRateLimited(err); ok {
			platformThrottled.Inc()
			c.stall(ctx, rle.RetryAfter)
			return
		}
		c.logger.Error("failed to create post", "community", community, "err", err)
		return
	}
	a.limiter.Record(ratelimit.ActionPost)
	a.increment(ctx, countAction, ratelimit.ActionPost, countstore.PeriodDay)
	c.stats.PostsMade++
	c.logger.Info("created post", "community", community, "post", post.ID)
	a.notify(ctx, EventPostCreated, map[string]any{
		"community": community,
		"title":     title,
		"post_id":   post.ID,
	})
}

// stall waits for a rate limit to clear, bounded by what is left of the
// cycle's stall allowance.
func (c *cycle) stall(ctx context.Context, d time.Duration) {
	if d > c.stallLeft {
		d = c.stallLeft
	}
	if d <= 0 {
		return
	}
	c.stallLeft -= d
	c.logger.Info("waiting for rate limit", "duration", d)
	_ = c.agent.sleep(ctx, d)
}

func (c *cycle) decide(ctx context.Context, d Decision) {
	c.stats.Decisions = append(c.stats.Decisions, d)
	decisionCount.WithLabelValues(string(d.Outcome)).Inc()
	c.logger.Info("post decision",
		"post", d.PostID,
		"community", d.Community,
		"author", d.Author,
		"outcome", d.Outcome,
		"reason", d.Reason,
		"risk", d.RiskLevel,
	)
	a := c.agent
	if a.activity == nil {
		return
	}
	row := &activity.Decision{
		CycleID:   c.stats.CycleID,
		PostID:    d.PostID,
		Community: d.Community,
		Author:    d.Author,
		Outcome:   string(d.Outcome),
		Reason:    d.Reason,
		RiskLevel: d.RiskLevel,
		Cost:      d.Cost,
	}
	row.SetCategories(d.Categories)
	if err := a.activity.RecordDecision(ctx, row); err != nil {
		c.logger.Warn("failed to record decision", "err", err)
	}
}

// scanInput scans text, consulting the verdict cache first.
func (a *Agent) scanInput(ctx context.Context, text string) scanner.Verdict {
	name := "verdict"
	if a.scanner.Strict() {
		name = "verdict-strict"
	}
	key := cachestore.ContentKey(text)
	if v, ok, err := cachestore.GetJSON[scanner.Verdict](ctx, a.cache, name, key); err != nil {
		a.logger.Warn("verdict cache read failed", "err", err)
	} else if ok {
		scanCacheHits.Inc()
		return v
	}

	v := a.scanner.Scan(text)
	scanVerdictCount.WithLabelValues("input", v.RiskLevel.String()).Inc()
	if err := cachestore.SetJSON(ctx, a.cache, name, key, v); err != nil {
		a.logger.Warn("verdict cache write failed", "err", err)
	}
	return v
}

func (a *Agent) scanOutput(text string) scanner.Verdict {
	v := a.scanner.Scan(text)
	scanVerdictCount.WithLabelValues("output", v.RiskLevel.String()).Inc()
	return v
}

// generate calls the model and charges the budget. The returned cost is
// non-zero whenever the provider reported usage, even on error.
func (a *Agent) generate(ctx context.Context, prompt string) (string, float64, error) {
	ctx, span := otel.Tracer("agent").Start(ctx, "Generate")
	defer span.End()

	start := time.Now()
	resp, err := a.model.Generate(ctx, llm.Request{
		System:      a.systemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	modelCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", 0, fmt.Errorf("generating: %w", err)
	}
	cost := a.governor.TrackUsage(resp.InputTokens, resp.OutputTokens)
	modelCostTotal.Add(cost)
	span.SetAttributes(attribute.Int("input_tokens", resp.InputTokens), attribute.Int("output_tokens", resp.OutputTokens))

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", cost, llm.ErrEmptyResponse
	}
	return text, cost, nil
}

func (a *Agent) increment(ctx context.Context, name, val string, period countstore.Period) {
	if err := a.counters.Increment(ctx, name, val, period); err != nil {
		a.logger.Warn("failed to increment counter", "name", name, "err", err)
	}
}

func (a *Agent) notify(ctx context.Context, kind EventKind, payload map[string]any) {
	if err := a.notifier.Notify(ctx, kind, payload); err != nil {
		a.logger.Warn("notification failed", "kind", kind, "err", err)
	}
}

// checkBudgetWarnings sends at most one warning per budget period once spend
// crosses budget.WarnFraction of a limit.
func (a *Agent) checkBudgetWarnings(ctx context.Context) {
	b := a.governor.CheckBudget()
	now := a.now().Local()
	check := func(kind, period string, used float64, limit *float64) {
		if limit == nil || *limit <= 0 || used < *limit*budget.WarnFraction {
			return
		}
		if a.warned[kind] == period {
			return
		}
		a.warned[kind] = period
		a.logger.Warn("budget warning", "budget", kind, "used", used, "limit", *limit)
		a.notify(ctx, EventBudgetWarning, map[string]any{"budget": kind, "used": used, "limit": *limit})
	}
	check("daily", now.Format(time.DateOnly), b.Today, b.DailyLimit)
	check("monthly", now.Format("2006-01"), b.Month, b.MonthlyLimit)
}

func (a *Agent) recordCycle(ctx context.Context, s *CycleStats) {
	if a.activity == nil {
		return
	}
	row := &activity.Cycle{
		CycleID:    s.CycleID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Fetched:    s.PostsFetched,
		Scanned:    s.PostsScanned,
		Blocked:    s.AttacksBlocked,
		Engaged:    s.CommentsMade,
		Skipped:    len(s.Decisions) - s.CommentsMade - s.AttacksBlocked,
		Errors:     s.FetchErrors + s.Count(OutcomeGenerateFailed) + s.Count(OutcomePostFailed),
		Cost:       s.Cost,
		Metric:     s.Metric,
	}
	if err := a.activity.RecordCycle(ctx, row); err != nil {
		a.logger.Warn("failed to record cycle", "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
