// internal/participant/participant.go
package participant

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/account"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/samber/lo"
)

// AdminPrefix marks text as coming from the bot itself rather than another player.
const AdminPrefix = "/me \n"

// Room is the part of a chat room a participant needs to know about.
type Room interface {
	Name() string
	Help() string
	HandleMessage(ctx context.Context, sender *Participant, text string) error
	Leave(p *Participant)
}

// Participant is an identity tracked by the orchestrator, independent of
// which backing account currently services it.
type Participant struct {
	id int64

	mu          sync.Mutex
	displayName string
	presence    models.Presence
	mode        models.VisibilityMode
	muted       map[int64]struct{}
	activeRoom  Room
	account     account.Account
}

// Preferences is the part of a participant that outlives a connection.
type Preferences struct {
	Mode  models.VisibilityMode `json:"mode"`
	Muted []int64               `json:"muted"`
}

// New creates a participant serviced by acc. acc may be nil for identities
// that are only referenced (bans, mutes, the sentinel admin).
func New(id int64, displayName string, acc account.Account) *Participant {
	return &Participant{
		id:          id,
		displayName: displayName,
		presence:    models.PresenceAvailable,
		mode:        models.DefaultVisibilityMode,
		muted:       make(map[int64]struct{}),
		account:     acc,
	}
}

// ID returns the stable participant id.
func (p *Participant) ID() int64 { return p.id }

// DisplayName returns the name shown in rooms and replies.
func (p *Participant) DisplayName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayName
}

// SetDisplayName updates the shown name, e.g. after a rename.
func (p *Participant) SetDisplayName(name string) {
	p.mu.Lock()
	p.displayName = name
	p.mu.Unlock()
}

// Presence returns the last reported chat availability.
func (p *Participant) Presence() models.Presence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presence
}

// SetPresence records a presence change reported by the backing account.
func (p *Participant) SetPresence(presence models.Presence) {
	p.mu.Lock()
	p.presence = presence
	p.mu.Unlock()
}

// Mode returns the visibility mode gating room traffic.
func (p *Participant) Mode() models.VisibilityMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode changes the visibility mode.
func (p *Participant) SetMode(mode models.VisibilityMode) {
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
}

// Account returns the backing account servicing the participant, nil when disconnected.
func (p *Participant) Account() account.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account
}

// BindAccount attaches the participant to acc; nil detaches it.
func (p *Participant) BindAccount(acc account.Account) {
	p.mu.Lock()
	p.account = acc
	p.mu.Unlock()
}

// Connected reports whether a backing account currently services the participant.
func (p *Participant) Connected() bool {
	return p.Account() != nil
}

// Mute stops delivery of messages sent by id. Muting is local to p.
func (p *Participant) Mute(id int64) {
	p.mu.Lock()
	p.muted[id] = struct{}{}
	p.mu.Unlock()
}

// Unmute returns false if id was not muted.
func (p *Participant) Unmute(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.muted[id]; !ok {
		return false
	}
	delete(p.muted, id)
	return true
}

// IsMuted reports whether p muted the participant with the given id.
func (p *Participant) IsMuted(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.muted[id]
	return ok
}

// MutedIDs returns the muted ids in ascending order.
func (p *Participant) MutedIDs() []int64 {
	p.mu.Lock()
	ids := lo.Keys(p.muted)
	p.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// ActiveRoom returns the room the participant is chatting in, or nil.
func (p *Participant) ActiveRoom() Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeRoom
}

// SwapActiveRoom makes r the active room and returns the previous one.
func (p *Participant) SwapActiveRoom(r Room) Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.activeRoom
	p.activeRoom = r
	return prev
}

// ClearActiveRoom unsets the active room only if it is still r.
func (p *Participant) ClearActiveRoom(r Room) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeRoom != r {
		return false
	}
	p.activeRoom = nil
	return true
}

// LeaveRoom leaves the active room, if any, and returns it.
func (p *Participant) LeaveRoom() Room {
	prev := p.SwapActiveRoom(nil)
	if prev != nil {
		prev.Leave(p)
	}
	return prev
}

// Preferences snapshots the persistent settings.
func (p *Participant) Preferences() Preferences {
	return Preferences{Mode: p.Mode(), Muted: p.MutedIDs()}
}

// Restore replaces the persistent settings with prefs.
func (p *Participant) Restore(prefs Preferences) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = prefs.Mode
	p.muted = lo.SliceToMap(prefs.Muted, func(id int64) (int64, struct{}) {
		return id, struct{}{}
	})
}

// Deliver sends text from sender to p if p is connected, has not muted the
// sender and its visibility mode allows delivery in its current presence.
// A dropped message is not an error; a failed send is.
func (p *Participant) Deliver(ctx context.Context, sender *Participant, text string) error {
	p.mu.Lock()
	acc := p.account
	_, muted := p.muted[sender.ID()]
	allowed := p.mode.Allows(p.presence)
	p.mu.Unlock()

	if acc == nil || muted || !allowed {
		return nil
	}
	if err := acc.SendText(ctx, p.id, text); err != nil {
		return fmt.Errorf("deliver to participant %d: %w", p.id, err)
	}
	return nil
}

// DeliverAdmin sends a reply from the bot. Mutes and the visibility mode are
// bypassed, a backing account is still required.
func (p *Participant) DeliverAdmin(ctx context.Context, text string) error {
	acc := p.Account()
	if acc == nil {
		return nil
	}
	if err := acc.SendText(ctx, p.id, AdminPrefix+text); err != nil {
		return fmt.Errorf("admin delivery to participant %d: %w", p.id, err)
	}
	return nil
}

func (p *Participant) String() string {
	return fmt.Sprintf("Participant[id=%d, name=%s]", p.id, p.DisplayName())
}
