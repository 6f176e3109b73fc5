package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatePreservesUnknownKeys(t *testing.T) {
	assert := assert.New(t)

	in := `{
		"seen_post_ids": ["b", "a"],
		"rate_state": {"comment": [1700000000.5, 1700000100]},
		"budget_state": {"cost_today": 0.25, "cost_month": 3.5, "last_reset_day": "2025-03-14", "last_reset_month": "2025-03"},
		"last_known_metric": 42,
		"future_feature": {"enabled": true, "level": 3},
		"notes": "hello"
	}`

	st := New()
	require.NoError(t, json.Unmarshal([]byte(in), st))
	assert.True(st.Seen("a"))
	assert.True(st.Seen("b"))
	assert.False(st.Seen("c"))
	assert.Equal([]float64{1700000000.5, 1700000100}, st.RateState["comment"])
	assert.Equal(0.25, st.BudgetState.CostToday)
	assert.Equal("2025-03", st.BudgetState.LastResetMonth)
	assert.Equal(42, st.LastKnownMetric)

	out, err := json.Marshal(st)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.JSONEq(`{"enabled": true, "level": 3}`, string(fields["future_feature"]))
	assert.JSONEq(`"hello"`, string(fields["notes"]))
	assert.JSONEq(`["b", "a"]`, string(fields["seen_post_ids"]))
}

func TestRunStateSeenCap(t *testing.T) {
	assert := assert.New(t)

	st := New()
	for i := 0; i <= MaxSeenPosts; i++ {
		st.MarkSeen(fmt.Sprintf("p%d", i))
	}
	st.MarkSeen("p1")
	assert.Len(st.SeenPostIDs, MaxSeenPosts)
	assert.False(st.Seen("p0"))
	assert.True(st.Seen("p1"))
	assert.True(st.Seen(fmt.Sprintf("p%d", MaxSeenPosts)))

	// oldest first on disk, so a reload evicts in the same order
	out, err := json.Marshal(st)
	require.NoError(t, err)
	loaded := New()
	require.NoError(t, json.Unmarshal(out, loaded))
	loaded.MarkSeen("new")
	assert.Len(loaded.SeenPostIDs, MaxSeenPosts)
	assert.False(loaded.Seen("p1"))
	assert.True(loaded.Seen("p2"))
	assert.True(loaded.Seen("new"))

	// a clone keeps the order
	c := st.Clone()
	c.MarkSeen("other")
	assert.False(c.Seen("p1"))
	assert.True(st.Seen("p1"))
}

func TestRunStateClone(t *testing.T) {
	assert := assert.New(t)

	st := New()
	st.MarkSeen("p1")
	st.RateState["post"] = []float64{1, 2}
	st.DailyCounts["comment/2025-03-14"] = 3

	c := st.Clone()
	c.MarkSeen("p2")
	c.RateState["post"][0] = 99
	c.DailyCounts["comment/2025-03-14"] = 4

	assert.False(st.Seen("p2"))
	assert.Equal(1.0, st.RateState["post"][0])
	assert.Equal(3, st.DailyCounts["comment/2025-03-14"])
}

func TestStoreSaveLoad(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "agent_state.json")
	store := NewStore(path, nil, nil)
	assert.Equal(path, store.Path())

	// missing file starts fresh
	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(st.SeenPostIDs)

	st.MarkSeen("abc")
	st.LastKnownMetric = 7
	st.BudgetState.CostToday = 0.5
	require.NoError(t, store.Save(ctx, st))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(entries, 1)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(loaded.Seen("abc"))
	assert.Equal(7, loaded.LastKnownMetric)
	assert.Equal(0.5, loaded.BudgetState.CostToday)
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewStore(path, nil, nil).Load(context.Background())
	assert.Error(t, err)
}

func TestStoreMirror(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mirror := NewMemMirror()
	dir := t.TempDir()

	store := NewStore(filepath.Join(dir, "agent_state.json"), mirror, nil)
	st := New()
	st.MarkSeen("xyz")
	require.NoError(t, store.Save(ctx, st))
	assert.Contains(mirror.Objects, "agent_state.json")

	// a fresh host with no local file restores from the mirror
	other := NewStore(filepath.Join(t.TempDir(), "agent_state.json"), mirror, nil)
	restored, err := other.Load(ctx)
	require.NoError(t, err)
	assert.True(restored.Seen("xyz"))

	// empty mirror means fresh state
	empty := NewStore(filepath.Join(t.TempDir(), "agent_state.json"), NewMemMirror(), nil)
	fresh, err := empty.Load(ctx)
	require.NoError(t, err)
	assert.Empty(fresh.SeenPostIDs)
}

func TestNewMirrorURL(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m, err := NewMirror(ctx, MirrorConfig{})
	assert.NoError(err)
	assert.Nil(m)

	_, err = NewMirror(ctx, MirrorConfig{URL: "ftp://example.com/x"})
	assert.Error(err)

	_, err = NewMirror(ctx, MirrorConfig{URL: "gs:///nobucket"})
	assert.Error(err)
}

func TestRedisMirror(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	m, err := NewRedisMirror("redis://localhost:6379/0")
	require.NoError(t, err)

	_, err = m.Get(ctx, "missing.json")
	assert.ErrorIs(err, ErrNotFound)

	assert.NoError(m.Put(ctx, "test.json", []byte(`{"a":1}`)))
	b, err := m.Get(ctx, "test.json")
	assert.NoError(err)
	assert.Equal(`{"a":1}`, string(b))
}
