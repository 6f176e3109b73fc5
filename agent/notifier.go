package agent

import (
	"context"
)

type EventKind string

const (
	EventStartup        EventKind = "startup"
	EventShutdown       EventKind = "shutdown"
	EventCycleComplete  EventKind = "cycle_complete"
	EventCommentCreated EventKind = "comment_created"
	EventPostCreated    EventKind = "post_created"
	EventAttackBlocked  EventKind = "attack_blocked"
	EventBudgetWarning  EventKind = "budget_warning"
	EventError          EventKind = "error"
)

// Interface for a type that can handle sending notifications. The agent logs
// Notify errors and never lets them affect a cycle.
type Notifier interface {
	Notify(ctx context.Context, kind EventKind, payload map[string]any) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, kind EventKind, payload map[string]any) error {
	return nil
}
