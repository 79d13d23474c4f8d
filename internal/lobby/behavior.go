// internal/lobby/behavior.go
package lobby

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Hoster is a backing account able to create and run lobbies.
type Hoster interface {
	Handle() uuid.UUID
	// Host creates the lobby for inst and returns once it is open. The hoster
	// calls inst.Shutdown when the lobby is torn down.
	Host(ctx context.Context, inst *Instance) error
	InviteParticipant(ctx context.Context, participantID int64) error
	MoveToSpectate(ctx context.Context) error
	DisbandLobby(ctx context.Context) error
	WriteToLobbyChat(ctx context.Context, message, chatID string) error
	ChampionsOwnedBy(ctx context.Context, participantID int64) ([]int, error)
}

// Behavior is the variant specific part of an Instance. Calls are made
// outside the instance lock.
type Behavior interface {
	// MemberJoined is called when a participant enters one of the two teams.
	MemberJoined(ctx context.Context, inst *Instance, participantID int64)
	// MemberDeparted is called when a team member left the teams.
	MemberDeparted(ctx context.Context, inst *Instance, participantID int64)
}

func newBehavior(v Variant, log *logrus.Entry) Behavior {
	switch v {
	case VariantChampionPool:
		return &ChampionPool{log: log}
	}
	return genericBehavior{}
}

type genericBehavior struct{}

func (genericBehavior) MemberJoined(context.Context, *Instance, int64)   {}
func (genericBehavior) MemberDeparted(context.Context, *Instance, int64) {}

// ChampionPool tracks the champions owned by every team member.
type ChampionPool struct {
	log *logrus.Entry

	mu     sync.Mutex
	owned  map[int64][]int
	common map[int]struct{}
}

// Common returns the champion ids owned by all current members, ascending.
func (c *ChampionPool) Common() []int {
	c.mu.Lock()
	ids := lo.Keys(c.common)
	c.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func (c *ChampionPool) MemberJoined(ctx context.Context, inst *Instance, participantID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owned[participantID]; ok {
		return
	}
	c.addLocked(ctx, inst, participantID)
	c.reportLocked(ctx, inst)
}

// MemberDeparted rebuilds the intersection from the remaining members.
func (c *ChampionPool) MemberDeparted(ctx context.Context, inst *Instance, participantID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owned = nil
	c.common = nil
	members := inst.Members()
	for _, id := range members {
		c.addLocked(ctx, inst, id)
	}
	if len(members) > 0 {
		c.reportLocked(ctx, inst)
	}
}

func (c *ChampionPool) addLocked(ctx context.Context, inst *Instance, participantID int64) {
	champions, err := inst.Hoster().ChampionsOwnedBy(ctx, participantID)
	if err != nil {
		c.log.WithError(err).WithField("participant", participantID).Warn("Failed to query owned champions")
		return
	}
	if c.owned == nil {
		c.owned = make(map[int64][]int)
	}
	c.owned[participantID] = champions

	owned := lo.SliceToMap(champions, func(id int) (int, struct{}) { return id, struct{}{} })
	if c.common == nil {
		c.common = owned
		return
	}
	for id := range c.common {
		if _, ok := owned[id]; !ok {
			delete(c.common, id)
		}
	}
}

func (c *ChampionPool) reportLocked(ctx context.Context, inst *Instance) {
	msg := fmt.Sprintf("%d champions are owned by everyone", len(c.common))
	if len(c.common) == 0 {
		msg = "Warning: no champion is owned by every member"
	}
	if err := inst.WriteMessageToChat(ctx, msg); err != nil {
		c.log.WithError(err).Warn("Failed to post champion pool status")
	}
}
