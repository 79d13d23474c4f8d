package participant

import (
	"strconv"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/models"
)

// Directory maps participant ids to participants. Entries are never removed:
// a disconnected participant keeps its mutes and mode until it returns.
type Directory struct {
	mu           sync.RWMutex
	participants map[int64]*Participant
}

// NewDirectory creates and returns an empty participant directory.
func NewDirectory() *Directory {
	return &Directory{participants: make(map[int64]*Participant)}
}

// GetOrCreate returns the participant with id, creating it with name if it
// is not known yet. created reports which happened.
func (d *Directory) GetOrCreate(id int64, name string) (p *Participant, created bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.participants[id]; ok {
		return p, false
	}
	p = New(id, name, nil)
	d.participants[id] = p
	return p, true
}

// Get returns the participant with the given id.
func (d *Directory) Get(id int64) (*Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.participants[id]
	return p, ok
}

// ByName finds a participant by display name, ignoring case.
func (d *Directory) ByName(name string) (*Participant, bool) {
	key := models.FoldName(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.participants {
		if models.FoldName(p.DisplayName()) == key {
			return p, true
		}
	}
	return nil, false
}

// DisplayName resolves id to a display name, falling back to the numeric id.
func (d *Directory) DisplayName(id int64) string {
	if p, ok := d.Get(id); ok {
		return p.DisplayName()
	}
	return "#" + strconv.FormatInt(id, 10)
}

// Connected returns every participant currently serviced by an account.
func (d *Directory) Connected() []*Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Participant, 0, len(d.participants))
	for _, p := range d.participants {
		if p.Connected() {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of known participants, connected or not.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.participants)
}
