// internal/lobby/instance.go
package lobby

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DefaultSpectateThreshold is the number of team members at which the hoster
// leaves the teams for the spectator slots.
const DefaultSpectateThreshold = 7

var instanceIDs atomic.Int64

// Team identifies the roster a member update refers to.
type Team int

const (
	TeamDeparted   Team = -1
	Team0          Team = 0
	Team1          Team = 1
	TeamSpectators Team = 2
)

func (t Team) String() string {
	switch t {
	case TeamDeparted:
		return "departed"
	case Team0:
		return "team0"
	case Team1:
		return "team1"
	case TeamSpectators:
		return "spectators"
	}
	return fmt.Sprintf("team(%d)", int(t))
}

// Settings tune an Instance.
type Settings struct {
	SpectateThreshold int
}

func (s Settings) withDefaults() Settings {
	if s.SpectateThreshold <= 0 {
		s.SpectateThreshold = DefaultSpectateThreshold
	}
	return s
}

// expiryNoticeTimeout bounds the notice sent to a participant whose invite lapsed.
const expiryNoticeTimeout = 5 * time.Second

// ExpireFunc runs when an invite was not accepted in time.
type ExpireFunc func(inst *Instance, p *participant.Participant)

type invite struct {
	participant *participant.Participant
	onExpire    ExpireFunc
	timer       *time.Timer
}

// Instance is a live lobby created by a hoster for one request.
type Instance struct {
	id       int64
	request  *Request
	hoster   Hoster
	behavior Behavior
	settings Settings
	log      *logrus.Entry
	openedAt time.Time

	// expiry callbacks of one instance never run concurrently
	expireMu sync.Mutex

	mu               sync.Mutex
	chatID           string
	team0            map[int64]struct{}
	team1            map[int64]struct{}
	spectators       map[int64]struct{}
	invited          map[int64]*invite
	hosterSpectating bool
	closed           bool
	closedAt         time.Time
	done             chan struct{}
}

// NewInstance creates the lobby state for req, hosted by h.
func NewInstance(req *Request, h Hoster, logger *logrus.Logger, settings Settings) *Instance {
	id := instanceIDs.Add(1)
	inst := &Instance{
		id:       id,
		request:  req,
		hoster:   h,
		settings: settings.withDefaults(),
		log: logger.WithFields(logrus.Fields{
			"lobby":   id,
			"request": req.ID(),
		}),
		openedAt:   time.Now(),
		team0:      make(map[int64]struct{}),
		team1:      make(map[int64]struct{}),
		spectators: make(map[int64]struct{}),
		invited:    make(map[int64]*invite),
		done:       make(chan struct{}),
	}
	inst.behavior = newBehavior(req.Variant(), inst.log)
	return inst
}

func (i *Instance) ID() int64          { return i.id }
func (i *Instance) Request() *Request  { return i.request }
func (i *Instance) Hoster() Hoster     { return i.hoster }
func (i *Instance) Behavior() Behavior { return i.behavior }

// Done is closed once the instance shut down.
func (i *Instance) Done() <-chan struct{} { return i.done }

// SetChatID records the lobby chat channel, known once the hoster created the lobby.
func (i *Instance) SetChatID(chatID string) {
	i.mu.Lock()
	i.chatID = chatID
	i.mu.Unlock()
}

func (i *Instance) capacityLocked() int {
	return 2 * i.request.Template().TeamSize
}

func (i *Instance) isFullLocked() bool {
	return len(i.team0)+len(i.team1) >= i.capacityLocked()
}

// IsFull reports whether both teams are at the template's team size.
func (i *Instance) IsFull() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.isFullLocked()
}

// OpenSlots returns the team slots neither taken nor reserved by a pending invite.
func (i *Instance) OpenSlots() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return 0
	}
	return max(0, i.capacityLocked()-len(i.team0)-len(i.team1)-len(i.invited))
}

// Invite asks the hoster to invite p. Unless p joins a roster within timeout,
// the invite expires and onExpire runs. Returns false without side effects
// when the lobby is full, closed, or p is already invited or a member.
func (i *Instance) Invite(ctx context.Context, p *participant.Participant, timeout time.Duration, onExpire ExpireFunc) (bool, error) {
	id := p.ID()

	i.mu.Lock()
	if i.closed || i.isFullLocked() || i.trackedLocked(id) {
		i.mu.Unlock()
		return false, nil
	}
	if _, pending := i.invited[id]; pending {
		i.mu.Unlock()
		return false, nil
	}
	inv := &invite{participant: p, onExpire: onExpire}
	i.invited[id] = inv
	i.mu.Unlock()

	if err := i.hoster.InviteParticipant(ctx, id); err != nil {
		i.mu.Lock()
		if i.invited[id] == inv {
			delete(i.invited, id)
		}
		i.mu.Unlock()
		return false, fmt.Errorf("invite participant %d to lobby %d: %w", id, i.id, err)
	}

	i.mu.Lock()
	// the invite may already be resolved by a member update or a shutdown
	if i.invited[id] == inv && !i.closed {
		inv.timer = time.AfterFunc(timeout, func() { i.expire(inv) })
	}
	i.mu.Unlock()

	i.log.WithField("participant", id).Debug("Participant invited")
	return true, nil
}

func (i *Instance) expire(inv *invite) {
	i.expireMu.Lock()
	defer i.expireMu.Unlock()

	id := inv.participant.ID()
	i.mu.Lock()
	if i.closed || i.invited[id] != inv {
		// stale timer: accepted, re-invited or shut down
		i.mu.Unlock()
		return
	}
	delete(i.invited, id)
	_, in0 := i.team0[id]
	_, in1 := i.team1[id]
	i.mu.Unlock()
	if in0 || in1 {
		return
	}

	log := i.log.WithField("participant", id)
	log.Info("Invite expired")
	ctx, cancel := context.WithTimeout(context.Background(), expiryNoticeTimeout)
	err := inv.participant.DeliverAdmin(ctx, fmt.Sprintf("You did not accept the invite to lobby #%d in time.", i.id))
	cancel()
	if err != nil {
		log.WithError(err).Debug("Expiry notice not delivered")
	}
	if inv.onExpire != nil {
		inv.onExpire(i, inv.participant)
	}
}

// Tracks reports whether id is on a roster or holds a pending invite.
func (i *Instance) Tracks(id int64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, invited := i.invited[id]
	return invited || i.trackedLocked(id)
}

func (i *Instance) trackedLocked(id int64) bool {
	_, in0 := i.team0[id]
	_, in1 := i.team1[id]
	_, spec := i.spectators[id]
	return in0 || in1 || spec
}

// MemberUpdate applies a roster change reported by the hoster. A participant
// joining any roster resolves a pending invite.
func (i *Instance) MemberUpdate(ctx context.Context, participantID int64, team Team) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	_, in0 := i.team0[participantID]
	_, in1 := i.team1[participantID]
	wasTeam := in0 || in1
	wasTracked := i.trackedLocked(participantID)

	switch team {
	case TeamDeparted, Team0, Team1, TeamSpectators:
	default:
		i.mu.Unlock()
		i.log.WithField("team", int(team)).Warn("Ignoring member update for unknown team")
		return
	}

	delete(i.team0, participantID)
	delete(i.team1, participantID)
	delete(i.spectators, participantID)
	if team != TeamDeparted {
		if inv, ok := i.invited[participantID]; ok {
			if inv.timer != nil {
				inv.timer.Stop()
			}
			delete(i.invited, participantID)
		}
	}
	switch team {
	case Team0:
		i.team0[participantID] = struct{}{}
	case Team1:
		i.team1[participantID] = struct{}{}
	case TeamSpectators:
		i.spectators[participantID] = struct{}{}
	}
	isTeam := team == Team0 || team == Team1

	spectate := !i.hosterSpectating && len(i.team0)+len(i.team1) >= i.settings.SpectateThreshold
	if spectate {
		i.hosterSpectating = true
	}
	i.mu.Unlock()

	i.log.WithFields(logrus.Fields{"participant": participantID, "team": team}).Debug("Member update")
	if spectate {
		if err := i.hoster.MoveToSpectate(ctx); err != nil {
			i.log.WithError(err).Warn("Failed to move hoster to the spectator slots")
		}
	}
	switch {
	case isTeam && !wasTeam:
		i.behavior.MemberJoined(ctx, i, participantID)
	case wasTeam && !isTeam, team == TeamDeparted && wasTracked:
		i.behavior.MemberDeparted(ctx, i, participantID)
	}
}

// Members returns the ids of both teams in ascending order.
func (i *Instance) Members() []int64 {
	i.mu.Lock()
	ids := append(lo.Keys(i.team0), lo.Keys(i.team1)...)
	i.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Roster returns the sorted ids in one roster.
func (i *Instance) Roster(team Team) []int64 {
	i.mu.Lock()
	var ids []int64
	switch team {
	case Team0:
		ids = lo.Keys(i.team0)
	case Team1:
		ids = lo.Keys(i.team1)
	case TeamSpectators:
		ids = lo.Keys(i.spectators)
	}
	i.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Invited returns the sorted ids with a pending invite.
func (i *Instance) Invited() []int64 {
	i.mu.Lock()
	ids := lo.Keys(i.invited)
	i.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// HosterSpectating reports whether the hoster already moved to spectate.
func (i *Instance) HosterSpectating() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hosterSpectating
}

// WriteMessageToChat posts message in the lobby's chat channel.
func (i *Instance) WriteMessageToChat(ctx context.Context, message string) error {
	i.mu.Lock()
	chatID := i.chatID
	i.mu.Unlock()
	if err := i.hoster.WriteToLobbyChat(ctx, message, chatID); err != nil {
		return fmt.Errorf("write to lobby %d chat: %w", i.id, err)
	}
	return nil
}

// Shutdown cancels every pending invite timer without running its expiry
// callback. Safe to call more than once.
func (i *Instance) Shutdown() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	i.closedAt = time.Now()
	for id, inv := range i.invited {
		if inv.timer != nil {
			inv.timer.Stop()
		}
		delete(i.invited, id)
	}
	close(i.done)
	i.log.Info("Lobby shut down")
}

// Closed reports whether Shutdown ran.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// Record summarizes the instance for the lobby history.
func (i *Instance) Record() models.LobbyRecord {
	members := i.Members()
	i.mu.Lock()
	closedAt := i.closedAt
	i.mu.Unlock()
	return models.LobbyRecord{
		LobbyID:    i.id,
		RequestID:  i.request.ID(),
		Name:       i.request.Name(),
		Variant:    i.request.Variant().String(),
		Template:   i.request.Template(),
		Members:    members,
		OpenedAt:   i.openedAt,
		ClosedAt:   closedAt,
		HostHandle: i.hoster.Handle().String(),
	}
}
