package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, 10, cfg.ContactSafetyMargin)
	assert.Equal(t, 8, cfg.CapacityQueryLimit)
	assert.Equal(t, 25, cfg.RoomNameLimit)
	assert.Equal(t, 30*time.Second, cfg.InviteTimeout)
	assert.Equal(t, 7, cfg.SpectateThreshold)
	assert.Equal(t, time.Minute, cfg.TakeTimeout)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.Equal(t, []string{"Offtopic"}, cfg.PinnedRoomNames())
	assert.Empty(t, cfg.BlockedWordList())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.True(t, cfg.HistorianEmbedded)
	assert.Equal(t, 20, cfg.HistorianBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlushDelay)

	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_PORT", "9000")
	t.Setenv("INVITE_TIMEOUT", "45s")
	t.Setenv("PINNED_ROOMS", " Offtopic, Help ,,Trading")
	t.Setenv("BLOCKED_WORDS", "foo,bar")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServicePort)
	assert.Equal(t, 45*time.Second, cfg.InviteTimeout)
	assert.Equal(t, []string{"Offtopic", "Help", "Trading"}, cfg.PinnedRoomNames())
	assert.Equal(t, []string{"foo", "bar"}, cfg.BlockedWordList())
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, ttl)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("expire time", func(t *testing.T) {
		t.Setenv("TOKEN_EXPIRE_TIME", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("half a key pair", func(t *testing.T) {
		t.Setenv("TOKEN_PRIVATE_KEY", "/tmp/key")
		_, err := Load()
		assert.Error(t, err)
	})
}
