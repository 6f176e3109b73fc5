package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqldb, err := db.DB()
	require.NoError(t, err)
	// each new connection to :memory: is a separate database
	sqldb.SetMaxOpenConns(1)

	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func TestRecordDecisions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	for _, outcome := range []string{"engaged", "scanner_blocked", "engaged", "random_skip"} {
		d := &Decision{CycleID: "c1", PostID: "p-" + outcome, Outcome: outcome}
		d.SetCategories([]string{"jailbreak", "role_hijacking"})
		require.NoError(t, s.RecordDecision(ctx, d))
	}

	recent, err := s.RecentDecisions(ctx, 2)
	assert.NoError(err)
	assert.Len(recent, 2)
	assert.Equal("random_skip", recent[0].Outcome)
	assert.Equal("jailbreak,role_hijacking", recent[0].Categories)

	counts, err := s.OutcomeCounts(ctx, time.Now().Add(-time.Hour))
	assert.NoError(err)
	assert.Equal(2, counts["engaged"])
	assert.Equal(1, counts["scanner_blocked"])
	assert.Equal(1, counts["random_skip"])
}

func TestRecordCycleAndPrune(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.RecordCycle(ctx, &Cycle{CycleID: "c1", Fetched: 10, Engaged: 1}))
	require.NoError(t, s.RecordDecision(ctx, &Decision{CycleID: "c1", PostID: "p1", Outcome: "engaged"}))

	// cycle IDs are unique
	assert.Error(s.RecordCycle(ctx, &Cycle{CycleID: "c1"}))

	n, err := s.Prune(ctx, time.Now().Add(time.Minute))
	assert.NoError(err)
	assert.Equal(int64(2), n)

	recent, err := s.RecentDecisions(ctx, 10)
	assert.NoError(err)
	assert.Empty(recent)
}
