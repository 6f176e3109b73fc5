package agent

import (
	"time"
)

// Outcome is the terminal result of considering one post.
type Outcome string

const (
	OutcomeEngaged         Outcome = "engaged"
	OutcomeScannerBlocked  Outcome = "scanner_blocked"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	OutcomeRandomSkip      Outcome = "random_skip"
	OutcomeAlreadyHandled  Outcome = "already_handled"
	OutcomeOwnPost         Outcome = "own_post"
	OutcomeDailyCap        Outcome = "daily_cap"
	OutcomeBlockedAuthor   Outcome = "blocked_author"
	OutcomeGenerateFailed  Outcome = "generate_failed"
	OutcomeOutputBlocked   Outcome = "output_blocked"
	OutcomePostFailed      Outcome = "post_failed"
)

// Decision records what happened to one post in one cycle.
type Decision struct {
	PostID     string   `json:"post_id"`
	Community  string   `json:"community"`
	Author     string   `json:"author"`
	Outcome    Outcome  `json:"outcome"`
	Reason     string   `json:"reason,omitempty"`
	RiskLevel  string   `json:"risk_level,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Cost       float64  `json:"cost,omitempty"`
}

// CycleStats summarizes one RunOnce.
type CycleStats struct {
	CycleID        string     `json:"cycle_id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	PostsFetched   int        `json:"posts_fetched"`
	PostsScanned   int        `json:"posts_scanned"`
	AlreadySeen    int        `json:"already_seen"`
	AttacksBlocked int        `json:"attacks_blocked"`
	CommentsMade   int        `json:"comments_made"`
	PostsMade      int        `json:"posts_made"`
	FetchErrors    int        `json:"fetch_errors"`
	Cost           float64    `json:"cost"`
	Metric         int        `json:"metric"`
	Decisions      []Decision `json:"decisions"`
}

// Count returns how many decisions ended with outcome o.
func (s *CycleStats) Count(o Outcome) int {
	n := 0
	for _, d := range s.Decisions {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// Active reports whether the cycle produced anything worth notifying about.
func (s *CycleStats) Active() bool {
	return s.CommentsMade > 0 || s.PostsMade > 0 || s.AttacksBlocked > 0
}
