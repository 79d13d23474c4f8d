// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// LobbyHistoryQueue is the Redis list closed lobbies are pushed to for
// external consumers.
var LobbyHistoryQueue = "lmc:lobby_history"

// ConnectRedis initializes the global Redis client.
func ConnectRedis(addr string, db int) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// RedisPreferences keeps participant preferences as JSON strings.
type RedisPreferences struct {
	client *redis.Client
}

// NewRedisPreferences creates a preference store backed by client.
func NewRedisPreferences(client *redis.Client) *RedisPreferences {
	return &RedisPreferences{client: client}
}

// Load reads the preferences saved for participantID.
func (s *RedisPreferences) Load(ctx context.Context, participantID int64) (participant.Preferences, bool, error) {
	var prefs participant.Preferences
	data, err := s.client.Get(ctx, preferenceKey(participantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return prefs, false, nil
	}
	if err != nil {
		return prefs, false, fmt.Errorf("failed to load preferences of %d: %w", participantID, err)
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return prefs, false, fmt.Errorf("failed to decode preferences of %d: %w", participantID, err)
	}
	return prefs, true, nil
}

// Save overwrites the preferences of participantID. Entries never expire.
func (s *RedisPreferences) Save(ctx context.Context, participantID int64, prefs participant.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences of %d: %w", participantID, err)
	}
	if err := s.client.Set(ctx, preferenceKey(participantID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save preferences of %d: %w", participantID, err)
	}
	return nil
}

// PublishLobbyRecord serializes rec to JSON and pushes it to the history queue.
func PublishLobbyRecord(ctx context.Context, rec models.LobbyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal LobbyRecord: %w", err)
	}
	if err := Rdb.RPush(ctx, LobbyHistoryQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", LobbyHistoryQueue, err)
	}
	return nil
}
