// internal/chatroom/registry.go
package chatroom

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/auth"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/sirupsen/logrus"
)

// Sentinel identity owning every pinned room.
const (
	AdminID   int64 = -101
	AdminName       = "Admin"
)

// ErrRoomExists is returned when a pinned room would replace a registered room.
var ErrRoomExists = errors.New("room already registered")

// Registry maps case-folded room names to rooms. One lock guards the map,
// the invalidation flag and the listing cache; room membership is guarded
// by each room.
type Registry struct {
	log       *logrus.Logger
	directory *participant.Directory
	admin     *participant.Participant

	mu          sync.Mutex
	rooms       map[string]*Room
	invalidated bool
	pinnedCache []*Room
	customCache []*Room
}

// NewRegistry creates an empty registry. directory resolves player names for
// room moderation commands.
func NewRegistry(logger *logrus.Logger, directory *participant.Directory) *Registry {
	return &Registry{
		log:         logger,
		directory:   directory,
		admin:       participant.New(AdminID, AdminName, nil),
		rooms:       make(map[string]*Room),
		invalidated: true,
	}
}

// Get looks a room up by name, ignoring case.
func (r *Registry) Get(name string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[models.FoldName(name)]
	return room, ok
}

// CreateOrJoin joins the room called name, creating it with requester as
// owner if it does not exist. On success the requester leaves its previous
// room. The returned room is nil only when err is non-nil.
func (r *Registry) CreateOrJoin(name, password string, requester *participant.Participant) (models.RoomEntry, *Room, error) {
	key := models.FoldName(name)
	for {
		room, ok := r.Get(name)
		if !ok {
			created, room, err := r.create(key, name, password, requester)
			if err != nil {
				return 0, nil, err
			}
			if !created {
				// lost a creation race; join the winner's room
				continue
			}
			r.enter(requester, room)
			r.log.WithFields(logrus.Fields{"room": name, "owner": requester.ID()}).Info("Room created")
			return models.RoomCreated, room, nil
		}

		entry, err := room.join(requester, password)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		if entry == models.RoomJoined {
			r.enter(requester, room)
		}
		return entry, room, nil
	}
}

func (r *Registry) create(key, name, password string, owner *participant.Participant) (bool, *Room, error) {
	hash, err := hashRoomPassword(password)
	if err != nil {
		return false, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[key]; exists {
		return false, nil, nil
	}
	room := newRoom(r, name, hash, owner, false, nil)
	room.admit(owner)
	r.rooms[key] = room
	r.invalidated = true
	return true, room, nil
}

// enter makes room the active room of p and leaves the previous one.
func (r *Registry) enter(p *participant.Participant, room *Room) {
	prev := p.SwapActiveRoom(room)
	if prev != nil && prev != participant.Room(room) {
		prev.Leave(p)
	}
}

// RegisterPinned installs a room owned by the sentinel admin that survives
// being empty. Registering a name that is already taken fails with
// ErrRoomExists.
func (r *Registry) RegisterPinned(name, password string, ext Extension) (*Room, error) {
	hash, err := hashRoomPassword(password)
	if err != nil {
		return nil, err
	}
	room := newRoom(r, name, hash, r.admin, true, ext)

	r.mu.Lock()
	if _, taken := r.rooms[room.key]; taken {
		r.mu.Unlock()
		return nil, fmt.Errorf("register pinned room %q: %w", name, ErrRoomExists)
	}
	r.rooms[room.key] = room
	r.invalidated = true
	r.mu.Unlock()

	r.log.WithField("room", name).Info("Pinned room registered")
	return room, nil
}

// Unregister removes room from the registry if it is still the room
// registered under its name.
func (r *Registry) Unregister(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.rooms[room.key]; ok && current == room {
		delete(r.rooms, room.key)
		r.invalidated = true
	}
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// partitions returns copies of the cached pinned and listed custom rooms,
// rebuilding the cache if a room was created or removed since the last call.
func (r *Registry) partitions() (pinned, custom []*Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalidated {
		r.pinnedCache = r.pinnedCache[:0]
		r.customCache = r.customCache[:0]
		for _, room := range r.rooms {
			switch {
			case room.pinned:
				r.pinnedCache = append(r.pinnedCache, room)
			case !room.Protected():
				r.customCache = append(r.customCache, room)
			}
		}
		r.invalidated = false
	}
	return slices.Clone(r.pinnedCache), slices.Clone(r.customCache)
}

// snapshot captures member counts first so the sort works on stable values
// even while members join and leave.
func snapshot(rooms []*Room) []models.RoomInfo {
	infos := make([]models.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	slices.SortFunc(infos, func(a, b models.RoomInfo) int {
		if c := cmp.Compare(b.Members, a.Members); c != 0 {
			return c
		}
		return cmp.Compare(models.FoldName(a.Name), models.FoldName(b.Name))
	})
	return infos
}

// ListRooms renders the !rooms reply: pinned rooms first, then public custom
// rooms, each ordered by member count.
func (r *Registry) ListRooms() string {
	pinned, custom := r.partitions()

	var sb strings.Builder
	sb.WriteString("Chatrooms:\n")
	for _, info := range snapshot(pinned) {
		fmt.Fprintf(&sb, "%s (%d online)\n", info.Name, info.Members)
	}
	sb.WriteString("---\n")
	for _, info := range snapshot(custom) {
		fmt.Fprintf(&sb, "%s (%d online)\n", info.Name, info.Members)
	}
	return sb.String()
}

// Snapshot returns every registered room, pinned first.
func (r *Registry) Snapshot() []models.RoomInfo {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	infos := snapshot(rooms)
	slices.SortStableFunc(infos, func(a, b models.RoomInfo) int {
		switch {
		case a.Pinned == b.Pinned:
			return 0
		case a.Pinned:
			return -1
		}
		return 1
	})
	return infos
}

func hashRoomPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := auth.HashPassword(password, auth.RoomPasswordParams)
	if err != nil {
		return "", fmt.Errorf("hash room password: %w", err)
	}
	return hash, nil
}
