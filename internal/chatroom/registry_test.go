// internal/chatroom/registry_test.go
package chatroom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/KilianB/LeagueMultiChat/internal/account/accounttest"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry  *Registry
	directory *participant.Directory
	accounts  map[int64]*accounttest.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	dir := participant.NewDirectory()
	return &fixture{
		registry:  NewRegistry(logger, dir),
		directory: dir,
		accounts:  make(map[int64]*accounttest.Fake),
	}
}

func (f *fixture) player(id int64, name string) *participant.Participant {
	p, _ := f.directory.GetOrCreate(id, name)
	acc := accounttest.New(100)
	p.BindAccount(acc)
	f.accounts[id] = acc
	return p
}

func (f *fixture) get(id int64) *participant.Participant {
	p, _ := f.directory.Get(id)
	return p
}

func TestCreateOrJoinIgnoresCase(t *testing.T) {
	f := newFixture(t)
	alice := f.player(1, "alice")
	bob := f.player(2, "bob")

	entry, room, err := f.registry.CreateOrJoin("Foo", "", alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoomCreated, entry)
	assert.Same(t, alice, room.Owner())

	entry, again, err := f.registry.CreateOrJoin("fOO", "", bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoomJoined, entry)
	assert.Same(t, room, again)
	assert.Equal(t, "Foo", again.Name())
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 2, room.MemberCount())
}

func TestJoiningLeavesPreviousRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.player(1, "alice")
	bob := f.player(2, "bob")

	_, first, err := f.registry.CreateOrJoin("first", "", alice)
	require.NoError(t, err)
	_, _, err = f.registry.CreateOrJoin("first", "", bob)
	require.NoError(t, err)

	_, second, err := f.registry.CreateOrJoin("second", "", alice)
	require.NoError(t, err)
	assert.False(t, first.IsMember(alice.ID()))
	assert.True(t, second.IsMember(alice.ID()))
	assert.Equal(t, participant.Room(second), alice.ActiveRoom())
}

func TestCustomRoomRemovedWhenEmpty(t *testing.T) {
	f := newFixture(t)
	alice := f.player(1, "alice")
	bob := f.player(2, "bob")

	_, room, err := f.registry.CreateOrJoin("party", "", alice)
	require.NoError(t, err)
	_, _, err = f.registry.CreateOrJoin("party", "", bob)
	require.NoError(t, err)

	room.Leave(bob)
	_, ok := f.registry.Get("party")
	assert.True(t, ok)

	room.Leave(alice)
	_, ok = f.registry.Get("party")
	assert.False(t, ok)
	assert.NotContains(t, f.registry.ListRooms(), "party")

	// the name is free again; the new room is a different one
	entry, fresh, err := f.registry.CreateOrJoin("party", "", bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoomCreated, entry)
	assert.NotSame(t, room, fresh)
}

func TestPinnedRoomSurvivesEmpty(t *testing.T) {
	f := newFixture(t)
	alice := f.player(1, "alice")

	pinned, err := f.registry.RegisterPinned("Offtopic", "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(AdminID), pinned.Owner().ID())

	entry, room, err := f.registry.CreateOrJoin("offtopic", "", alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoomJoined, entry)
	assert.Same(t, pinned, room)

	room.Leave(alice)
	_, ok := f.registry.Get("OFFTOPIC")
	assert.True(t, ok)
	assert.Contains(t, f.registry.ListRooms(), "Offtopic (0 online)")
}

func TestRegisterPinnedKeepsLiveRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.player(1, "alice")

	_, live, err := f.registry.CreateOrJoin("Lounge", "", alice)
	require.NoError(t, err)

	_, err = f.registry.RegisterPinned("LOUNGE", "", nil)
	assert.ErrorIs(t, err, ErrRoomExists)
	got, ok := f.registry.Get("lounge")
	require.True(t, ok)
	assert.Same(t, live, got)
	assert.False(t, got.Pinned())
	assert.Same(t, live, alice.ActiveRoom())
	assert.Equal(t, 1, f.registry.Len())
}

func TestListRoomsOrdering(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.RegisterPinned("Offtopic", "", nil)
	require.NoError(t, err)
	_, err = f.registry.RegisterPinned("Lfg", "", nil)
	require.NoError(t, err)

	var id int64
	join := func(room string, n int) {
		for range n {
			id++
			_, _, err := f.registry.CreateOrJoin(room, "", f.player(id, fmt.Sprintf("p%d", id)))
			require.NoError(t, err)
		}
	}
	join("Lfg", 2)
	join("small", 1)
	join("big", 3)
	_, _, err = f.registry.CreateOrJoin("hidden", "pw", f.player(100, "sneaky"))
	require.NoError(t, err)

	want := "Chatrooms:\n" +
		"Lfg (2 online)\n" +
		"Offtopic (0 online)\n" +
		"---\n" +
		"big (3 online)\n" +
		"small (1 online)\n"
	assert.Equal(t, want, f.registry.ListRooms())

	snap := f.registry.Snapshot()
	require.Len(t, snap, 5)
	assert.True(t, snap[0].Pinned)
	assert.True(t, snap[1].Pinned)
	assert.Equal(t, "big", snap[2].Name)
	assert.Equal(t, "hidden", snap[3].Name)
	assert.True(t, snap[3].Protected)
}

func TestWrongPasswordAndBan(t *testing.T) {
	f := newFixture(t)
	owner := f.player(1, "owner")
	guest := f.player(2, "Guest")
	ctx := context.Background()

	_, room, err := f.registry.CreateOrJoin("vault", "secret", owner)
	require.NoError(t, err)
	assert.True(t, room.Protected())

	entry, _, err := f.registry.CreateOrJoin("vault", "nope", guest)
	require.NoError(t, err)
	assert.Equal(t, models.RoomWrongPassword, entry)
	assert.Nil(t, guest.ActiveRoom())

	entry, _, err = f.registry.CreateOrJoin("VAULT", "secret", guest)
	require.NoError(t, err)
	assert.Equal(t, models.RoomJoined, entry)

	require.NoError(t, room.HandleMessage(ctx, owner, "!ban guest"))
	assert.False(t, room.IsMember(guest.ID()))
	assert.Nil(t, guest.ActiveRoom())
	assert.Contains(t, f.accounts[2].LastTo(2), "banned from vault")

	entry, _, err = f.registry.CreateOrJoin("vault", "secret", guest)
	require.NoError(t, err)
	assert.Equal(t, models.RoomBanned, entry)

	require.NoError(t, room.HandleMessage(ctx, owner, "!unban Guest"))
	entry, _, err = f.registry.CreateOrJoin("vault", "secret", guest)
	require.NoError(t, err)
	assert.Equal(t, models.RoomJoined, entry)
}

func TestConcurrentJoinAndLeaveKeepsRegistryConsistent(t *testing.T) {
	f := newFixture(t)
	players := make([]*participant.Participant, 32)
	for i := range players {
		players[i] = f.player(int64(i+1), fmt.Sprintf("p%d", i+1))
	}

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p *participant.Participant) {
			defer wg.Done()
			for range 20 {
				_, room, err := f.registry.CreateOrJoin("churn", "", p)
				if err != nil {
					t.Error(err)
					return
				}
				_ = f.registry.ListRooms()
				p.ClearActiveRoom(room)
				room.Leave(p)
			}
		}(p)
	}
	wg.Wait()

	_, ok := f.registry.Get("churn")
	assert.False(t, ok)
	assert.False(t, strings.Contains(f.registry.ListRooms(), "churn"))
}
