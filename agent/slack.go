package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/moltguard/moltguard/util"
)

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
	Logger          *slog.Logger
	// messages beyond this rate are dropped rather than queued
	Limiter *rate.Limiter
}

var _ Notifier = (*SlackNotifier)(nil)

// NewSlackNotifier returns a notifier allowing a burst of 5 messages and one
// per 10 seconds after that.
func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          util.RobustHTTPClientWithLogger(logger),
		Logger:          logger.With("component", "slack"),
		Limiter:         rate.NewLimiter(rate.Every(10*time.Second), 5),
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, kind EventKind, payload map[string]any) error {
	if n.SlackWebhookURL == "" {
		return nil
	}
	if n.Limiter != nil && !n.Limiter.Allow() {
		n.Logger.Warn("dropping slack notification, rate limited", "kind", kind)
		return nil
	}
	msg := slackText(kind, payload)
	n.Logger.Debug("sending slack notification", "kind", kind)
	return n.sendSlackMsg(ctx, msg)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackText(kind EventKind, p map[string]any) string {
	str := func(k string) string {
		if v, ok := p[k]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}
	num := func(k string) float64 {
		switch v := p[k].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
		return 0
	}

	switch kind {
	case EventStartup:
		return fmt.Sprintf("🚀 Agent `%s` started monitoring: %s", str("agent"), str("communities"))
	case EventShutdown:
		return fmt.Sprintf("🛑 Agent `%s` stopped: %s", str("agent"), str("reason"))
	case EventCommentCreated:
		return fmt.Sprintf("💬 Commented on @%s's post in %s\n>%s", str("author"), str("community"), truncate(str("preview"), 200))
	case EventPostCreated:
		return fmt.Sprintf("📝 New post in %s: %s\nPost ID: `%s`", str("community"), truncate(str("title"), 100), str("post_id"))
	case EventAttackBlocked:
		return fmt.Sprintf("🛡️ Blocked %s attack (risk: %s)\nSource: %s", str("categories"), strings.ToUpper(str("risk_level")), truncate(str("source"), 100))
	case EventBudgetWarning:
		used, limit := num("used"), num("limit")
		pct := 0.0
		if limit > 0 {
			pct = used / limit * 100
		}
		return fmt.Sprintf("💰 Budget warning: %s at %.1f%% ($%.2f / $%.2f)", str("budget"), pct, used, limit)
	case EventCycleComplete:
		return fmt.Sprintf("✅ Cycle: %s comments, %s posts, %s attacks blocked\nToday: $%.4f | Month: $%.2f",
			str("comments_made"), str("posts_made"), str("attacks_blocked"), num("cost_today"), num("cost_month"))
	case EventError:
		return fmt.Sprintf("❌ Error: %s\n```%s```", str("type"), truncate(str("message"), 500))
	default:
		return fmt.Sprintf("%s: %v", kind, p)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
