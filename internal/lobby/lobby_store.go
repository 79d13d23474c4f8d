// internal/lobby/lobby_store.go
package lobby

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Store tracks the lobbies currently hosted, keyed by instance id.
// Protocol events reporting member updates are routed through it.
type Store struct {
	log     *logrus.Logger
	mu      sync.Mutex
	lobbies map[int64]*Instance
}

// NewStore creates and returns an empty lobby store.
func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		log:     logger,
		lobbies: make(map[int64]*Instance),
	}
}

// Add registers inst. An instance already present is left untouched.
func (s *Store) Add(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[inst.ID()]; exists {
		s.log.WithField("lobby", inst.ID()).Warn("Lobby already stored")
		return
	}
	s.lobbies[inst.ID()] = inst
}

// Delete removes the lobby with the given id, if present.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
}

// Get returns the open lobby with the given id.
func (s *Store) Get(id int64) (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.lobbies[id]
	return inst, ok
}

// Lobbies returns a copy of the stored instances.
func (s *Store) Lobbies() map[int64]*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*Instance, len(s.lobbies))
	for k, v := range s.lobbies {
		out[k] = v
	}
	return out
}
