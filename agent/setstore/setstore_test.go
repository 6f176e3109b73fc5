package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	ok, err := ss.InSet(ctx, SetBlockedAuthors, "spammer")
	assert.NoError(err)
	assert.False(ok)

	ss.Add(SetBlockedAuthors, "Spammer", "  ", "bot9000")
	ok, err = ss.InSet(ctx, SetBlockedAuthors, "spammer")
	assert.NoError(err)
	assert.True(ok)
	ok, err = ss.InSet(ctx, SetBlockedAuthors, "BOT9000")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal([]string{"bot9000", "spammer"}, ss.Members(SetBlockedAuthors))
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "sets.json")
	require.NoError(t, os.WriteFile(p, []byte(`{
		"blocked-authors": ["troll"],
		"known-attacks": ["OVERRIDE-ALPHA", "override-beta"]
	}`), 0o600))

	ss := NewMemSetStore()
	ss.Add(SetBlockedAuthors, "stale")
	require.NoError(t, ss.LoadFromFileJSON(p))

	ok, err := ss.InSet(ctx, SetBlockedAuthors, "stale")
	assert.NoError(err)
	assert.False(ok)
	ok, err = ss.InSet(ctx, SetBlockedAuthors, "troll")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal([]string{"override-alpha", "override-beta"}, ss.Members(SetKnownAttacks))

	assert.Error(ss.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}
