// internal/cache/badger.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens an embedded store in dir, or an in-memory one when dir is empty.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return db, nil
}

// BadgerPreferences keeps participant preferences in an embedded store, used
// when no Redis server is configured.
type BadgerPreferences struct {
	db *badger.DB
}

// NewBadgerPreferences creates a preference store backed by db.
func NewBadgerPreferences(db *badger.DB) *BadgerPreferences {
	return &BadgerPreferences{db: db}
}

// Load reads the preferences saved for participantID.
func (s *BadgerPreferences) Load(ctx context.Context, participantID int64) (participant.Preferences, bool, error) {
	var prefs participant.Preferences
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(preferenceKey(participantID)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &prefs)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return participant.Preferences{}, false, nil
	}
	if err != nil {
		return participant.Preferences{}, false, fmt.Errorf("failed to load preferences of %d: %w", participantID, err)
	}
	return prefs, true, nil
}

// Save overwrites the preferences of participantID.
func (s *BadgerPreferences) Save(ctx context.Context, participantID int64, prefs participant.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences of %d: %w", participantID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(preferenceKey(participantID)), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save preferences of %d: %w", participantID, err)
	}
	return nil
}
