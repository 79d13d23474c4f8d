// internal/handlers/frames.go
package handlers

import (
	"encoding/json"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/google/uuid"
)

// Frame is the envelope of every message on the account bridge. Calls from
// the server carry an ID the client echoes in its "result" frame.
type Frame struct {
	Type    string          `json:"type"`
	ID      uuid.UUID       `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client to server events.
const (
	EventParticipantConnected    = "participant_connected"
	EventParticipantDisconnected = "participant_disconnected"
	EventPresence                = "presence"
	EventMessage                 = "message"
	EventContactRequest          = "contact_request"
	EventLobbyMember             = "lobby_member"
	EventLobbyClosed             = "lobby_closed"
	EventResult                  = "result"
)

// Server to client calls.
const (
	CallQueryCapacity  = "query_capacity"
	CallSendText       = "send_text"
	CallRequestContact = "request_contact"
	CallHostLobby      = "host_lobby"
	CallInvite         = "invite"
	CallSpectate       = "spectate"
	CallDisband        = "disband"
	CallLobbyChat      = "lobby_chat"
	CallChampions      = "champions"
)

type participantEvent struct {
	ParticipantID int64  `json:"participant_id"`
	Name          string `json:"name,omitempty"`
	Presence      string `json:"presence,omitempty"`
	Text          string `json:"text,omitempty"`
}

type contactEvent struct {
	ExternalID int64 `json:"external_id"`
}

type lobbyEvent struct {
	LobbyID       int64 `json:"lobby_id"`
	ParticipantID int64 `json:"participant_id,omitempty"`
	Team          int   `json:"team,omitempty"`
}

type capacityResult struct {
	Capacity int `json:"capacity"`
}

type sendTextCall struct {
	ParticipantID int64  `json:"participant_id"`
	Text          string `json:"text"`
}

type hostLobbyCall struct {
	LobbyID  int64               `json:"lobby_id"`
	Name     string              `json:"name"`
	Password string              `json:"password,omitempty"`
	Variant  string              `json:"variant"`
	Template models.GameTemplate `json:"template"`
}

type hostLobbyResult struct {
	ChatID string `json:"chat_id"`
}

type lobbyChatCall struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type championsResult struct {
	Champions []int `json:"champions"`
}
