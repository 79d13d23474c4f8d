// internal/cache/preferences_test.go
package cache

import (
	"context"
	"os"
	"testing"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, store PreferenceStore, id int64) {
	t.Helper()
	ctx := context.Background()

	_, found, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	want := participant.Preferences{Mode: models.VisibilityMobile, Muted: []int64{3, 8}}
	require.NoError(t, store.Save(ctx, id, want))

	got, found, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	want.Muted = nil
	want.Mode = models.VisibilityChat
	require.NoError(t, store.Save(ctx, id, want))
	got, _, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityChat, got.Mode)
	assert.Empty(t, got.Muted)
}

func TestBadgerPreferences(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	defer db.Close()

	exercise(t, NewBadgerPreferences(db), 42)
}

func TestBadgerPreferencesOnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenBadger(dir)
	require.NoError(t, err)
	store := NewBadgerPreferences(db)
	prefs := participant.Preferences{Mode: models.VisibilityIngame, Muted: []int64{1}}
	require.NoError(t, store.Save(context.Background(), 7, prefs))
	require.NoError(t, db.Close())

	db, err = OpenBadger(dir)
	require.NoError(t, err)
	defer db.Close()
	got, found, err := NewBadgerPreferences(db).Load(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, prefs, got)
}

// TestRedisPreferences runs against a live server when REDIS_ADDR is set.
func TestRedisPreferences(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	require.NoError(t, ConnectRedis(addr, 0))
	id := int64(-987654)
	t.Cleanup(func() { Rdb.Del(context.Background(), preferenceKey(id)) })

	exercise(t, NewRedisPreferences(Rdb), id)
}

func TestPreferenceKey(t *testing.T) {
	assert.Equal(t, "lmc:prefs:42", preferenceKey(42))
	assert.Equal(t, "lmc:prefs:-101", preferenceKey(-101))
}
