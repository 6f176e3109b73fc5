// Engagement counters bucketed by time period.
//
// Includes an interface and implementations using redis and in-process memory.
// The agent uses these for daily per-action and per-author caps, which are
// coarser than the rate limiter and reset at local midnight, and for lifetime
// markers such as "already replied to this post".
package countstore

import (
	"context"
	"time"
)

type Period string

const (
	// PeriodTotal never resets.
	PeriodTotal Period = "total"
	// PeriodDay resets at local midnight.
	PeriodDay Period = "day"
)

type CountStore interface {
	GetCount(ctx context.Context, name, val string, period Period) (int, error)
	// Increment bumps the counter in each of the given periods. With no
	// periods, both day and total buckets are bumped.
	Increment(ctx context.Context, name, val string, periods ...Period) error
}

// BucketKey is the storage key for one counter in one period. Day buckets
// carry the local date, eg "action/comment/2025-03-14".
func BucketKey(now time.Time, name, val string, period Period) string {
	if period == PeriodDay {
		return name + "/" + val + "/" + now.Local().Format(time.DateOnly)
	}
	return name + "/" + val
}

func periodsOrDefault(periods []Period) []Period {
	if len(periods) == 0 {
		return []Period{PeriodDay, PeriodTotal}
	}
	return periods
}
