// internal/chatroom/lfg_test.go
package chatroom

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/KilianB/LeagueMultiChat/internal/lobby/lobbytest"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLfgFixture(t *testing.T, inviteTimeout time.Duration) (*fixture, *Room, *LFG, *lobby.Scheduler) {
	t.Helper()
	f := newFixture(t)
	sched := lobby.NewScheduler(f.registry.log, lobby.SchedulerConfig{TakeTimeout: 10 * time.Millisecond})
	lfg := NewLFG(f.registry.log, sched, inviteTimeout)
	room, err := f.registry.RegisterPinned(LfgRoomName, "", lfg)
	require.NoError(t, err)
	return f, room, lfg, sched
}

func TestLfgQueueCommands(t *testing.T) {
	f, room, lfg, _ := newLfgFixture(t, time.Second)
	ctx := context.Background()
	alice := f.player(1, "alice")
	bob := f.player(2, "bob")
	for _, p := range []int64{1, 2} {
		_, _, err := f.registry.CreateOrJoin("lfg", "", f.get(p))
		require.NoError(t, err)
	}

	require.NoError(t, room.HandleMessage(ctx, alice, "!queue"))
	assert.Contains(t, f.accounts[1].LastTo(1), "position 1")
	require.NoError(t, room.HandleMessage(ctx, bob, "!queue"))
	assert.Contains(t, f.accounts[2].LastTo(2), "position 2")
	require.NoError(t, room.HandleMessage(ctx, alice, "!queue"))
	assert.Contains(t, f.accounts[1].LastTo(1), "already queued at position 1")
	assert.Equal(t, []int64{1, 2}, lfg.Waiting())

	require.NoError(t, room.HandleMessage(ctx, alice, "!unqueue"))
	assert.Equal(t, []int64{2}, lfg.Waiting())
	require.NoError(t, room.HandleMessage(ctx, alice, "!unqueue"))
	assert.Contains(t, f.accounts[1].LastTo(1), "not queued")

	// leaving the room drops the queue entry
	require.NoError(t, room.HandleMessage(ctx, bob, "!leave"))
	assert.Empty(t, lfg.Waiting())
}

func TestLfgHostRejectsBadArguments(t *testing.T) {
	f, room, _, sched := newLfgFixture(t, time.Second)
	ctx := context.Background()
	alice := f.player(1, "alice")
	_, _, err := f.registry.CreateOrJoin(LfgRoomName, "", alice)
	require.NoError(t, err)

	require.NoError(t, room.HandleMessage(ctx, alice, "!host urf"))
	assert.Contains(t, f.accounts[1].LastTo(1), "Unknown lobby type")
	require.NoError(t, room.HandleMessage(ctx, alice, "!host aram 9"))
	assert.Contains(t, f.accounts[1].LastTo(1), "between 1 and 5")
	require.NoError(t, room.HandleMessage(ctx, alice, "!host aram x"))
	assert.Contains(t, f.accounts[1].LastTo(1), "must be a number")
	assert.Zero(t, sched.Queue().Len())

	require.NoError(t, room.HandleMessage(ctx, alice, "!host aram 3"))
	assert.Contains(t, f.accounts[1].LastTo(1), "queued")
	require.Equal(t, 1, sched.Queue().Len())
}

func TestLfgInvitesWaitingPlayersAndRequeuesOnExpiry(t *testing.T) {
	f, room, lfg, sched := newLfgFixture(t, 40*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		sched.Wait()
	}()

	host := f.player(1, "host")
	b := f.player(2, "b")
	c := f.player(3, "c")
	d := f.player(4, "d")
	for id := int64(1); id <= 4; id++ {
		_, _, err := f.registry.CreateOrJoin(LfgRoomName, "", f.get(id))
		require.NoError(t, err)
	}

	require.NoError(t, room.HandleMessage(ctx, host, "!host generic 1"))
	require.NoError(t, room.HandleMessage(ctx, b, "!queue"))
	require.NoError(t, room.HandleMessage(ctx, c, "!queue"))
	require.NoError(t, room.HandleMessage(ctx, d, "!queue"))

	hoster := lobbytest.New()
	sched.AnnounceAvailable(ctx, hoster)
	inst := <-hoster.Hosted

	require.Eventually(t, func() bool { return len(hoster.Invites()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{2, 3}, hoster.Invites())
	assert.Equal(t, []int64{4}, lfg.Waiting())
	require.Eventually(t, func() bool {
		return strings.Contains(f.accounts[2].LastTo(2), "invited to lobby")
	}, time.Second, 5*time.Millisecond)

	// b accepts, c lets the invite lapse and d takes the slot
	inst.MemberUpdate(ctx, 2, lobby.Team0)
	require.Eventually(t, func() bool { return len(hoster.Invites()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{2, 3, 4}, hoster.Invites())
	assert.Empty(t, lfg.Waiting())
	assert.Contains(t, f.accounts[3].LastTo(3), "did not accept")

	inst.MemberUpdate(ctx, 4, lobby.Team1)
	assert.True(t, inst.IsFull())
	assert.Zero(t, inst.OpenSlots())
}

func TestLfgQueueFillsAlreadyOpenLobby(t *testing.T) {
	f, room, _, sched := newLfgFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		sched.Wait()
	}()

	host := f.player(1, "host")
	late := f.player(2, "late")
	for id := int64(1); id <= 2; id++ {
		_, _, err := f.registry.CreateOrJoin(LfgRoomName, "", f.get(id))
		require.NoError(t, err)
	}

	require.NoError(t, room.HandleMessage(ctx, host, "!host"))
	hoster := lobbytest.New()
	sched.AnnounceAvailable(ctx, hoster)
	inst := <-hoster.Hosted
	require.Eventually(t, func() bool {
		_, ok := sched.Store().Get(inst.ID())
		return ok
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(f.accounts[2].LastTo(2), "is open")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, room.HandleMessage(ctx, late, "!queue"))
	require.Eventually(t, func() bool { return len(hoster.Invites()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{2}, hoster.Invites())
	assert.Equal(t, []int64{2}, inst.Invited())
}

func TestLfgRefusedInviteKeepsParticipantQueued(t *testing.T) {
	f, _, lfg, _ := newLfgFixture(t, time.Second)
	ctx := context.Background()
	alice := f.player(1, "alice")
	bob := f.player(2, "bob")

	req, err := lobby.NewRequest(lobby.RequestConfig{Template: models.DefaultTemplate(models.MapHowlingAbyss)})
	require.NoError(t, err)
	inst := lobby.NewInstance(req, lobbytest.New(), f.registry.log, lobby.Settings{})
	inst.Shutdown()

	lfg.enqueue(alice)
	lfg.enqueue(bob)
	p := lfg.next()
	require.Same(t, alice, p)
	assert.False(t, lfg.invite(ctx, inst, p))
	assert.Equal(t, []int64{1, 2}, lfg.Waiting())
}

func TestLfgDropsParticipantAlreadyInLobby(t *testing.T) {
	f, _, lfg, _ := newLfgFixture(t, time.Second)
	ctx := context.Background()
	alice := f.player(1, "alice")
	bob := f.player(2, "bob")

	req, err := lobby.NewRequest(lobby.RequestConfig{Template: models.DefaultTemplate(models.MapHowlingAbyss)})
	require.NoError(t, err)
	hoster := lobbytest.New()
	inst := lobby.NewInstance(req, hoster, f.registry.log, lobby.Settings{})
	t.Cleanup(inst.Shutdown)
	inst.MemberUpdate(ctx, alice.ID(), lobby.Team0)

	lfg.enqueue(alice)
	lfg.enqueue(bob)
	lfg.fill(ctx, inst)
	assert.Empty(t, lfg.Waiting())
	assert.Equal(t, []int64{2}, hoster.Invites())
	assert.Equal(t, []int64{2}, inst.Invited())
}
