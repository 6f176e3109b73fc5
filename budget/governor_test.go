package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestGovernorUnknownModel(t *testing.T) {
	_, err := New("gpt-2", State{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestGovernorTrackUsage(t *testing.T) {
	assert := assert.New(t)
	clk := &fakeClock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.Local)}
	g, err := New("claude-3-5-sonnet", State{}, WithClock(clk.Now))
	require.NoError(t, err)

	cost := g.TrackUsage(1000, 1000)
	assert.InDelta(0.018, cost, 1e-9)

	st := g.CheckBudget()
	assert.InDelta(0.018, st.Today, 1e-9)
	assert.InDelta(0.018, st.Month, 1e-9)
	assert.Nil(st.DailyLimit)
	assert.Nil(st.DailyRemaining)
	assert.Nil(st.MonthlyRemaining)
	assert.True(st.BudgetOK)
}

func TestGovernorDailyRollover(t *testing.T) {
	assert := assert.New(t)
	clk := &fakeClock{now: time.Date(2025, 3, 14, 23, 0, 0, 0, time.Local)}
	g, err := New("claude-3-5-sonnet", State{}, WithClock(clk.Now), WithLimits(Float(0.05), nil))
	require.NoError(t, err)

	g.TrackUsage(1000, 1000)
	g.TrackUsage(1000, 1000)
	st := g.CheckBudget()
	assert.True(st.BudgetOK)
	assert.InDelta(0.014, *st.DailyRemaining, 1e-9)

	g.TrackUsage(1000, 1000)
	st = g.CheckBudget()
	assert.False(st.BudgetOK)
	assert.Less(*st.DailyRemaining, 0.0)
	assert.Contains(g.Warnings(), "daily budget exceeded")

	// the next local day resets today's bucket but not the month
	clk.now = clk.now.Add(2 * time.Hour)
	st = g.CheckBudget()
	assert.True(st.BudgetOK)
	assert.Zero(st.Today)
	assert.InDelta(0.054, st.Month, 1e-9)
	assert.Empty(g.Warnings())
}

func TestGovernorUsageAtBoundary(t *testing.T) {
	assert := assert.New(t)
	clk := &fakeClock{now: time.Date(2025, 3, 31, 23, 59, 0, 0, time.Local)}
	g, err := New("claude-3-haiku", State{}, WithClock(clk.Now))
	require.NoError(t, err)

	g.TrackUsage(4000, 0)
	clk.now = time.Date(2025, 4, 1, 0, 0, 0, 0, time.Local)
	cost := g.TrackUsage(4000, 0)

	// usage recorded at the boundary belongs to the new day and month
	snap := g.Snapshot()
	assert.InDelta(cost, snap.CostToday, 1e-12)
	assert.InDelta(cost, snap.CostMonth, 1e-12)
	assert.Equal("2025-04-01", snap.LastResetDay)
	assert.Equal("2025-04", snap.LastResetMonth)
}

func TestGovernorResumesState(t *testing.T) {
	assert := assert.New(t)
	clk := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)}
	prior := State{CostToday: 0.9, CostMonth: 20, LastResetDay: "2025-03-14", LastResetMonth: "2025-03"}

	g, err := New("claude-3-5-sonnet", prior, WithClock(clk.Now), WithLimits(Float(1.0), Float(25.0)))
	require.NoError(t, err)

	st := g.CheckBudget()
	assert.InDelta(0.9, st.Today, 1e-9)
	assert.InDelta(0.1, *st.DailyRemaining, 1e-9)
	assert.InDelta(5.0, *st.MonthlyRemaining, 1e-9)
	assert.True(st.BudgetOK)
	assert.Len(g.Warnings(), 2)

	// monthly ceiling alone can close the gate
	require.NoError(t, g.SetBudget(nil, Float(20)))
	st = g.CheckBudget()
	assert.Nil(st.DailyLimit)
	assert.False(st.BudgetOK)

	assert.Error(g.SetBudget(Float(-1), nil))
}

func TestEstimateCost(t *testing.T) {
	assert := assert.New(t)

	est, err := EstimateCost("claude-3-5-sonnet", 5, 20, 50)
	assert.NoError(err)
	assert.InDelta(0.36, est.DailyCost, 1e-9)
	assert.InDelta(10.8, est.MonthlyCost, 1e-9)
	assert.Equal(76000, est.TokensPerDay)
	assert.InDelta(0.0675, est.Breakdown["posts"], 1e-9)
	assert.InDelta(0.18, est.Breakdown["comments"], 1e-9)
	assert.InDelta(0.1125, est.Breakdown["reads"], 1e-9)

	_, err = EstimateCost("nope", 1, 1, 1)
	assert.ErrorIs(err, ErrUnknownModel)
}

func TestCompareModels(t *testing.T) {
	assert := assert.New(t)

	all := CompareModels(5, 20, 50)
	assert.Len(all, len(Models()))
	assert.Equal("gpt-4o-mini", all[0].Model)
	assert.Equal("claude-3-opus", all[len(all)-1].Model)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(all[i-1].MonthlyCost, all[i].MonthlyCost)
	}
}
