// internal/chatroom/room.go
package chatroom

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/auth"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Room level commands, only reachable from inside a room.
const (
	cmdLeave = "!leave"
	cmdWho   = "!who"
	cmdKick  = "!kick"
	cmdBan   = "!ban"
	cmdUnban = "!unban"
)

const roomHelp = "Room commands:\n" +
	cmdLeave + ": Leave the current room\n ---- \n" +
	cmdWho + ": List everyone in the room\n ---- \n" +
	cmdKick + " [playername]: (owner) Remove a player from the room\n ---- \n" +
	cmdBan + " [playername]: (owner) Remove a player and keep them out\n ---- \n" +
	cmdUnban + " [playername]: (owner) Lift a ban\n"

// errRoomClosed is returned by join when the room emptied and left the
// registry between lookup and join. The registry retries on it.
var errRoomClosed = errors.New("room closed")

// Extension adds behavior to a room, e.g. the looking-for-group queue.
type Extension interface {
	// HandleCommand gets the first look at every message sent inside the room.
	// Returning handled=true stops further processing.
	HandleCommand(ctx context.Context, room *Room, sender *participant.Participant, text string) (handled bool, err error)
	// MemberLeft is called after a participant left or was removed.
	MemberLeft(ctx context.Context, room *Room, p *participant.Participant)
	Help() string
}

// Room is a named multi-user chat. Membership and bans are guarded by the
// room's own lock; registry shape changes go through the Registry.
type Room struct {
	name         string
	key          string
	passwordHash string
	pinned       bool
	owner        *participant.Participant
	registry     *Registry
	ext          Extension
	log          *logrus.Entry

	mu      sync.Mutex
	members map[int64]*participant.Participant
	banned  map[int64]struct{}
	closed  bool
}

func newRoom(reg *Registry, name, passwordHash string, owner *participant.Participant, pinned bool, ext Extension) *Room {
	return &Room{
		name:         name,
		key:          models.FoldName(name),
		passwordHash: passwordHash,
		pinned:       pinned,
		owner:        owner,
		registry:     reg,
		ext:          ext,
		log:          reg.log.WithField("room", name),
		members:      make(map[int64]*participant.Participant),
		banned:       make(map[int64]struct{}),
	}
}

// Name returns the name with the casing it was created with.
func (r *Room) Name() string { return r.name }

// Key returns the case-folded registry key.
func (r *Room) Key() string { return r.key }

// Pinned reports whether the room survives being empty.
func (r *Room) Pinned() bool { return r.pinned }

// Protected reports whether joining requires a password.
func (r *Room) Protected() bool { return r.passwordHash != "" }

func (r *Room) Owner() *participant.Participant { return r.owner }

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a snapshot of the members sorted by id.
func (r *Room) Members() []*participant.Participant {
	r.mu.Lock()
	members := lo.Values(r.members)
	r.mu.Unlock()
	slices.SortFunc(members, func(a, b *participant.Participant) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return members
}

// IsMember reports whether the participant with id is in the room.
func (r *Room) IsMember(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

// IsBanned reports whether id was banned by the owner.
func (r *Room) IsBanned(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.banned[id]
	return ok
}

// Info returns a read-only view of the room.
func (r *Room) Info() models.RoomInfo {
	return models.RoomInfo{
		Name:      r.name,
		Pinned:    r.pinned,
		Protected: r.Protected(),
		Members:   r.MemberCount(),
	}
}

// admit adds the creator of a fresh room without any checks.
func (r *Room) admit(p *participant.Participant) {
	r.mu.Lock()
	r.members[p.ID()] = p
	r.mu.Unlock()
}

// join checks the ban list, then the password, and adds p on success.
// It does not touch p's active room; the registry does that.
func (r *Room) join(p *participant.Participant, password string) (models.RoomEntry, error) {
	passwordOK := true
	if r.passwordHash != "" {
		ok, err := auth.VerifyPassword(password, r.passwordHash)
		if err != nil {
			return 0, fmt.Errorf("verify room password: %w", err)
		}
		passwordOK = ok
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, errRoomClosed
	}
	if _, ok := r.banned[p.ID()]; ok {
		return models.RoomBanned, nil
	}
	if _, ok := r.members[p.ID()]; ok {
		return models.RoomJoined, nil
	}
	if !passwordOK {
		return models.RoomWrongPassword, nil
	}
	r.members[p.ID()] = p
	return models.RoomJoined, nil
}

// Leave removes p from the room. A non pinned room that becomes empty closes
// and removes itself from the registry.
func (r *Room) Leave(p *participant.Participant) {
	r.remove(context.Background(), p)
}

func (r *Room) remove(ctx context.Context, p *participant.Participant) bool {
	r.mu.Lock()
	if _, ok := r.members[p.ID()]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.members, p.ID())
	empty := len(r.members) == 0 && !r.pinned
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if r.ext != nil {
		r.ext.MemberLeft(ctx, r, p)
	}
	if empty {
		r.log.Debug("Room empty, unregistering")
		r.registry.Unregister(r)
	}
	return true
}

// Help returns the room specific help text.
func (r *Room) Help() string {
	help := "\n" + roomHelp
	if r.ext != nil {
		help += r.ext.Help()
	}
	return help
}

// HandleMessage processes text sent by a member: room commands first, then
// a broadcast to every other member through their mailbox.
func (r *Room) HandleMessage(ctx context.Context, sender *participant.Participant, text string) error {
	if r.ext != nil {
		handled, err := r.ext.HandleCommand(ctx, r, sender, text)
		if handled || err != nil {
			return err
		}
	}

	switch {
	case strings.HasPrefix(text, cmdLeave):
		sender.ClearActiveRoom(r)
		r.remove(ctx, sender)
		return sender.DeliverAdmin(ctx, "Left room "+r.name)
	case strings.HasPrefix(text, cmdWho):
		return r.handleWho(ctx, sender)
	case strings.HasPrefix(text, cmdKick):
		return r.handleModeration(ctx, sender, text[len(cmdKick):], false)
	case strings.HasPrefix(text, cmdUnban):
		return r.handleUnban(ctx, sender, text[len(cmdUnban):])
	case strings.HasPrefix(text, cmdBan):
		return r.handleModeration(ctx, sender, text[len(cmdBan):], true)
	case strings.HasPrefix(text, "!"):
		return sender.DeliverAdmin(ctx, "Unknown command. Type !help to see what is available.")
	}
	return r.Broadcast(ctx, sender, text)
}

// Broadcast delivers text from sender to every other member. Delivery is
// best effort: every member is attempted and failures are joined.
func (r *Room) Broadcast(ctx context.Context, sender *participant.Participant, text string) error {
	line := fmt.Sprintf("[%s] %s: %s", r.name, sender.DisplayName(), text)
	var errs []error
	for _, m := range r.Members() {
		if m.ID() == sender.ID() {
			continue
		}
		if err := m.Deliver(ctx, sender, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Announce sends a bot message to every member.
func (r *Room) Announce(ctx context.Context, text string) error {
	var errs []error
	for _, m := range r.Members() {
		if err := m.DeliverAdmin(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Room) handleWho(ctx context.Context, sender *participant.Participant) error {
	names := lo.Map(r.Members(), func(p *participant.Participant, _ int) string {
		return "\t" + p.DisplayName()
	})
	return sender.DeliverAdmin(ctx, fmt.Sprintf("%s (%d online):\n%s", r.name, len(names), strings.Join(names, "\n")))
}

func (r *Room) handleModeration(ctx context.Context, sender *participant.Participant, arg string, ban bool) error {
	target, ok, err := r.resolveTarget(ctx, sender, arg)
	if !ok || err != nil {
		return err
	}
	if target.ID() == r.owner.ID() {
		return sender.DeliverAdmin(ctx, "The room owner can not be removed.")
	}

	if ban {
		r.mu.Lock()
		r.banned[target.ID()] = struct{}{}
		r.mu.Unlock()
	}
	if r.remove(ctx, target) {
		target.ClearActiveRoom(r)
		action := "kicked from"
		if ban {
			action = "banned from"
		}
		r.log.WithFields(logrus.Fields{"target": target.ID(), "ban": ban}).Info("Member removed by owner")
		if err := target.DeliverAdmin(ctx, "You were "+action+" "+r.name); err != nil {
			return err
		}
	}
	if ban {
		return sender.DeliverAdmin(ctx, target.DisplayName()+" is banned from "+r.name)
	}
	return sender.DeliverAdmin(ctx, target.DisplayName()+" was kicked")
}

func (r *Room) handleUnban(ctx context.Context, sender *participant.Participant, arg string) error {
	target, ok, err := r.resolveTarget(ctx, sender, arg)
	if !ok || err != nil {
		return err
	}
	r.mu.Lock()
	_, wasBanned := r.banned[target.ID()]
	delete(r.banned, target.ID())
	r.mu.Unlock()
	if !wasBanned {
		return sender.DeliverAdmin(ctx, target.DisplayName()+" was not banned")
	}
	return sender.DeliverAdmin(ctx, target.DisplayName()+" may join "+r.name+" again")
}

// resolveTarget enforces owner rights and resolves the player name in arg.
// ok is false when a reply was already sent.
func (r *Room) resolveTarget(ctx context.Context, sender *participant.Participant, arg string) (*participant.Participant, bool, error) {
	if sender.ID() != r.owner.ID() {
		return nil, false, sender.DeliverAdmin(ctx, "Only the room owner may do that.")
	}
	name := strings.TrimSpace(arg)
	if name == "" {
		return nil, false, sender.DeliverAdmin(ctx, "No player name supplied.")
	}
	target, ok := r.registry.directory.ByName(name)
	if !ok {
		return nil, false, sender.DeliverAdmin(ctx, "Unknown player: "+name)
	}
	return target, true, nil
}
