// Package lobbytest provides a recording lobby.Hoster for tests.
package lobbytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/account"
	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/google/uuid"
)

// Hoster records every call. Hosted instances are pushed to Hosted.
type Hoster struct {
	handle uuid.UUID
	Hosted chan *lobby.Instance

	mu        sync.Mutex
	hostErr   error
	inviteErr error
	invites   []int64
	spectate  int
	disbands  int
	chat      []string
	champions map[int64][]int
}

func New() *Hoster {
	return &Hoster{
		handle:    uuid.New(),
		Hosted:    make(chan *lobby.Instance, 16),
		champions: make(map[int64][]int),
	}
}

func (h *Hoster) Handle() uuid.UUID { return h.handle }

func (h *Hoster) Host(ctx context.Context, inst *lobby.Instance) error {
	h.mu.Lock()
	err := h.hostErr
	h.mu.Unlock()
	if err != nil {
		return err
	}
	inst.SetChatID(fmt.Sprintf("lobby-%d", inst.ID()))
	h.Hosted <- inst
	return nil
}

func (h *Hoster) InviteParticipant(ctx context.Context, participantID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inviteErr != nil {
		return h.inviteErr
	}
	h.invites = append(h.invites, participantID)
	return nil
}

func (h *Hoster) MoveToSpectate(ctx context.Context) error {
	h.mu.Lock()
	h.spectate++
	h.mu.Unlock()
	return nil
}

func (h *Hoster) DisbandLobby(ctx context.Context) error {
	h.mu.Lock()
	h.disbands++
	h.mu.Unlock()
	return nil
}

func (h *Hoster) WriteToLobbyChat(ctx context.Context, message, chatID string) error {
	h.mu.Lock()
	h.chat = append(h.chat, message)
	h.mu.Unlock()
	return nil
}

func (h *Hoster) ChampionsOwnedBy(ctx context.Context, participantID int64) ([]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.champions[participantID]...), nil
}

// SetChampions sets the champions participantID owns.
func (h *Hoster) SetChampions(participantID int64, ids ...int) {
	h.mu.Lock()
	h.champions[participantID] = ids
	h.mu.Unlock()
}

// FailHost makes Host fail with a transport error.
func (h *Hoster) FailHost() {
	h.mu.Lock()
	h.hostErr = fmt.Errorf("host lobby: %w", account.ErrTransport)
	h.mu.Unlock()
}

// FailInvites makes InviteParticipant fail with a transport error.
func (h *Hoster) FailInvites() {
	h.mu.Lock()
	h.inviteErr = fmt.Errorf("invite: %w", account.ErrTransport)
	h.mu.Unlock()
}

func (h *Hoster) Invites() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.invites...)
}

func (h *Hoster) SpectateCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spectate
}

func (h *Hoster) Disbands() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disbands
}

func (h *Hoster) Chat() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.chat...)
}
