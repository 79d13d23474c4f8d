// internal/chatroom/lfg.go
package chatroom

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/sirupsen/logrus"
)

// LfgRoomName is the pinned room hosting the looking-for-group queue.
const LfgRoomName = "Lfg"

const (
	cmdQueue   = "!queue"
	cmdUnqueue = "!unqueue"
	cmdHost    = "!host"
)

const lfgHelp = "Lobby commands:\n" +
	cmdQueue + ": Wait for the next open lobby\n ---- \n" +
	cmdUnqueue + ": Stop waiting\n ---- \n" +
	cmdHost + " [generic|aram] [teamsize]: Ask for a custom lobby\n"

// LFG is a room extension matching waiting participants with hosted lobbies.
type LFG struct {
	log           *logrus.Logger
	scheduler     *lobby.Scheduler
	inviteTimeout time.Duration

	mu      sync.Mutex
	waiting []*participant.Participant
}

// NewLFG creates the extension for the looking-for-group room. Hosting
// requests go to scheduler and invites lapse after inviteTimeout.
func NewLFG(logger *logrus.Logger, scheduler *lobby.Scheduler, inviteTimeout time.Duration) *LFG {
	return &LFG{
		log:           logger,
		scheduler:     scheduler,
		inviteTimeout: inviteTimeout,
	}
}

func (l *LFG) Help() string { return lfgHelp }

// Waiting returns the ids of queued participants, oldest first.
func (l *LFG) Waiting() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int64, 0, len(l.waiting))
	for _, p := range l.waiting {
		ids = append(ids, p.ID())
	}
	return ids
}

// HandleCommand handles !queue, !unqueue and !host.
func (l *LFG) HandleCommand(ctx context.Context, room *Room, sender *participant.Participant, text string) (bool, error) {
	switch {
	case strings.HasPrefix(text, cmdUnqueue):
		if !l.dequeue(sender.ID()) {
			return true, sender.DeliverAdmin(ctx, "You are not queued.")
		}
		return true, sender.DeliverAdmin(ctx, "You left the queue.")
	case strings.HasPrefix(text, cmdQueue):
		pos, added := l.enqueue(sender)
		if !added {
			return true, sender.DeliverAdmin(ctx, fmt.Sprintf("You are already queued at position %d.", pos))
		}
		if err := sender.DeliverAdmin(ctx, fmt.Sprintf("You are queued at position %d.", pos)); err != nil {
			return true, err
		}
		l.fillOpenLobbies(ctx)
		return true, nil
	case strings.HasPrefix(text, cmdHost):
		return true, l.handleHost(ctx, room, sender, text[len(cmdHost):])
	}
	return false, nil
}

// MemberLeft drops a participant leaving the room from the queue.
func (l *LFG) MemberLeft(ctx context.Context, room *Room, p *participant.Participant) {
	l.dequeue(p.ID())
}

func (l *LFG) enqueue(p *participant.Participant) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := slices.Index(l.waiting, p); i >= 0 {
		return i + 1, false
	}
	l.waiting = append(l.waiting, p)
	return len(l.waiting), true
}

func (l *LFG) dequeue(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.IndexFunc(l.waiting, func(p *participant.Participant) bool { return p.ID() == id })
	if i < 0 {
		return false
	}
	l.waiting = slices.Delete(l.waiting, i, i+1)
	return true
}

func (l *LFG) next() *participant.Participant {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.waiting) > 0 {
		p := l.waiting[0]
		l.waiting = l.waiting[1:]
		if p.Connected() {
			return p
		}
	}
	return nil
}

func (l *LFG) pushFront(p *participant.Participant) {
	l.mu.Lock()
	l.waiting = slices.Insert(l.waiting, 0, p)
	l.mu.Unlock()
}

func (l *LFG) handleHost(ctx context.Context, room *Room, sender *participant.Participant, args string) error {
	fields := strings.Fields(args)
	variant := lobby.VariantGeneric
	if len(fields) > 0 {
		v, ok := lobby.ParseVariant(fields[0])
		if !ok {
			return sender.DeliverAdmin(ctx, "Unknown lobby type "+fields[0]+". Use generic or aram.")
		}
		variant = v
	}

	tmpl := models.DefaultTemplate(models.MapSummonersRift)
	if variant == lobby.VariantChampionPool {
		tmpl = models.DefaultTemplate(models.MapHowlingAbyss)
		tmpl.PickBan = models.AllRandom
	}
	if len(fields) > 1 {
		size, err := strconv.Atoi(fields[1])
		if err != nil {
			return sender.DeliverAdmin(ctx, "Team size must be a number.")
		}
		tmpl.TeamSize = size
	}

	req, err := lobby.NewRequest(lobby.RequestConfig{
		Template:  tmpl,
		Name:      fmt.Sprintf("%s %s", room.Name(), sender.DisplayName()),
		Variant:   variant,
		Requester: &lfgRequester{lfg: l, room: room},
	})
	if err != nil {
		return sender.DeliverAdmin(ctx, "Team size must be between 1 and 5.")
	}
	l.scheduler.Submit(req)
	l.log.WithFields(logrus.Fields{"request": req.ID(), "by": sender.ID()}).Info("Lobby requested from room")
	return sender.DeliverAdmin(ctx, fmt.Sprintf("Lobby request #%d queued. Waiting for a free hoster.", req.ID()))
}

// fillOpenLobbies invites waiting participants into every hosted lobby with
// open slots.
func (l *LFG) fillOpenLobbies(ctx context.Context) {
	for _, inst := range l.scheduler.Store().Lobbies() {
		if _, ok := inst.Request().Requester().(*lfgRequester); ok {
			l.fill(ctx, inst)
		}
	}
}

// fill invites waiting participants while inst has open slots.
func (l *LFG) fill(ctx context.Context, inst *lobby.Instance) {
	for inst.OpenSlots() > 0 {
		p := l.next()
		if p == nil {
			return
		}
		if !l.invite(ctx, inst, p) {
			return
		}
	}
}

// invite offers inst to p and reports whether filling may continue. A
// participant whose invite was refused goes back to the front of the queue,
// unless the lobby already tracks them.
func (l *LFG) invite(ctx context.Context, inst *lobby.Instance, p *participant.Participant) bool {
	log := l.log.WithFields(logrus.Fields{"lobby": inst.ID(), "participant": p.ID()})
	ok, err := inst.Invite(ctx, p, l.inviteTimeout, l.expired)
	switch {
	case err != nil:
		log.WithError(err).Warn("Invite failed, participant stays queued")
		l.pushFront(p)
		return false
	case !ok && inst.Tracks(p.ID()):
		log.Debug("Participant already in lobby, dropped from queue")
		return true
	case !ok:
		log.Debug("Invite refused, participant stays queued")
		l.pushFront(p)
		return false
	}
	if err := p.DeliverAdmin(ctx, fmt.Sprintf("You were invited to lobby #%d. Accept within %s.", inst.ID(), l.inviteTimeout)); err != nil {
		log.WithError(err).Debug("Invite notice not delivered")
	}
	return true
}

// expired hands the slot of a lapsed invite to the next participant. The
// instance already told p the invite expired.
func (l *LFG) expired(inst *lobby.Instance, p *participant.Participant) {
	ctx, cancel := context.WithTimeout(context.Background(), l.inviteTimeout)
	defer cancel()
	l.fill(ctx, inst)
}

type lfgRequester struct {
	lfg  *LFG
	room *Room
}

func (r *lfgRequester) LobbyOpened(ctx context.Context, inst *lobby.Instance) {
	if err := r.room.Announce(ctx, fmt.Sprintf("Lobby #%d is open. Type %s to get an invite.", inst.ID(), cmdQueue)); err != nil {
		r.lfg.log.WithError(err).Debug("Lobby announcement partially failed")
	}
	r.lfg.fill(ctx, inst)
}

func (r *lfgRequester) LobbyClosed(ctx context.Context, inst *lobby.Instance) {
	r.lfg.log.WithField("lobby", inst.ID()).Debug("Lfg lobby closed")
}
