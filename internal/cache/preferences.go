// internal/cache/preferences.go
package cache

import (
	"context"
	"strconv"

	"github.com/KilianB/LeagueMultiChat/internal/participant"
)

// PreferenceStore persists the settings a participant keeps across
// connections.
type PreferenceStore interface {
	// Load reports found=false when nothing was saved for participantID.
	Load(ctx context.Context, participantID int64) (prefs participant.Preferences, found bool, err error)
	Save(ctx context.Context, participantID int64, prefs participant.Preferences) error
}

func preferenceKey(participantID int64) string {
	return "lmc:prefs:" + strconv.FormatInt(participantID, 10)
}
