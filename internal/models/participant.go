// internal/models/participant.go
package models

import (
	"fmt"
	"strings"
)

// Presence is the chat availability the ecosystem reports for a participant.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceAvailable
	PresenceAway
	PresenceBusy   // in game or champion select
	PresenceMobile // offline on desktop but reachable on mobile
	PresenceOffline
)

var presenceNames = map[Presence]string{
	PresenceUnknown:   "unknown",
	PresenceAvailable: "chat",
	PresenceAway:      "away",
	PresenceBusy:      "dnd",
	PresenceMobile:    "mobile",
	PresenceOffline:   "offline",
}

func (p Presence) String() string {
	if s, ok := presenceNames[p]; ok {
		return s
	}
	return fmt.Sprintf("presence(%d)", int(p))
}

// ParsePresence maps the ecosystem's availability strings to a Presence.
// Anything unrecognized is PresenceUnknown.
func ParsePresence(s string) Presence {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range presenceNames {
		if name == s {
			return p
		}
	}
	return PresenceUnknown
}

// VisibilityMode decides in which presence states a participant still wants
// to receive room traffic.
type VisibilityMode int

const (
	// VisibilityChat delivers only while the participant is available.
	VisibilityChat VisibilityMode = iota
	// VisibilityAway delivers while available or away.
	VisibilityAway
	// VisibilityIngame additionally delivers while busy.
	VisibilityIngame
	// VisibilityMobile delivers for every presence except offline.
	VisibilityMobile
)

// DefaultVisibilityMode is assigned to participants seen for the first time.
const DefaultVisibilityMode = VisibilityAway

// VisibilityModes lists every mode in declaration order.
var VisibilityModes = []VisibilityMode{VisibilityChat, VisibilityAway, VisibilityIngame, VisibilityMobile}

func (m VisibilityMode) String() string {
	switch m {
	case VisibilityChat:
		return "CHAT"
	case VisibilityAway:
		return "AWAY"
	case VisibilityIngame:
		return "INGAME"
	case VisibilityMobile:
		return "MOBILE"
	}
	return fmt.Sprintf("VisibilityMode(%d)", int(m))
}

// ParseVisibilityMode matches s case-insensitively against the mode names.
func ParseVisibilityMode(s string) (VisibilityMode, bool) {
	for _, m := range VisibilityModes {
		if strings.EqualFold(m.String(), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return 0, false
}

// Allows reports whether a message may be delivered to a participant in
// presence p under mode m.
func (m VisibilityMode) Allows(p Presence) bool {
	switch m {
	case VisibilityChat:
		return p == PresenceAvailable
	case VisibilityAway:
		return p == PresenceAvailable || p == PresenceAway
	case VisibilityIngame:
		return p == PresenceAvailable || p == PresenceAway || p == PresenceBusy
	case VisibilityMobile:
		return p != PresenceOffline
	}
	return false
}
