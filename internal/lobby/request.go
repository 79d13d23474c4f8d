// internal/lobby/request.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/go-playground/validator/v10"
)

// ErrRequestAccepted is returned when revising a request a hoster already took.
var ErrRequestAccepted = errors.New("hosting request already accepted")

var validate = validator.New()

var requestIDs atomic.Int64

// Variant selects the lobby behavior a hoster instantiates for a request.
type Variant int

const (
	// VariantGeneric tracks rosters only.
	VariantGeneric Variant = iota
	// VariantChampionPool keeps the intersection of champions owned by all
	// members, for modes where everyone picks from a shared pool.
	VariantChampionPool
)

func (v Variant) String() string {
	switch v {
	case VariantGeneric:
		return "generic"
	case VariantChampionPool:
		return "champion-pool"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant accepts the variant name or the game mode it is used for.
func ParseVariant(s string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic", "custom":
		return VariantGeneric, true
	case "champion-pool", "aram":
		return VariantChampionPool, true
	}
	return 0, false
}

// Requester is notified about the lifecycle of the lobby it asked for.
type Requester interface {
	// LobbyOpened is called once a hoster created the lobby for the request.
	LobbyOpened(ctx context.Context, inst *Instance)
	// LobbyClosed is called after the lobby was torn down.
	LobbyClosed(ctx context.Context, inst *Instance)
}

// RequestConfig holds everything needed to ask for a lobby.
type RequestConfig struct {
	Template  models.GameTemplate
	Name      string
	Password  string
	Variant   Variant
	Requester Requester
}

// Request is a queued ask for a lobby. Name, password and template may be
// revised until a hoster accepts the request.
type Request struct {
	id        int64
	variant   Variant
	requester Requester

	mu       sync.Mutex
	template models.GameTemplate
	name     string
	password string
	accepted bool
}

// NewRequest validates cfg and assigns the next request id.
func NewRequest(cfg RequestConfig) (*Request, error) {
	if err := validate.Struct(cfg.Template); err != nil {
		return nil, fmt.Errorf("invalid game template: %w", err)
	}
	return &Request{
		id:        requestIDs.Add(1),
		variant:   cfg.Variant,
		requester: cfg.Requester,
		template:  cfg.Template,
		name:      cfg.Name,
		password:  cfg.Password,
	}, nil
}

func (r *Request) ID() int64            { return r.id }
func (r *Request) Variant() Variant     { return r.variant }
func (r *Request) Requester() Requester { return r.requester }

// Template returns the requested game settings.
func (r *Request) Template() models.GameTemplate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.template
}

func (r *Request) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *Request) Password() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.password
}

// Accepted reports whether a hoster has taken the request.
func (r *Request) Accepted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted
}

// SetName renames the lobby. Fails with ErrRequestAccepted once a hoster took it.
func (r *Request) SetName(name string) error {
	return r.revise(func() { r.name = name })
}

// SetPassword changes the lobby password. Fails with ErrRequestAccepted once a hoster took it.
func (r *Request) SetPassword(password string) error {
	return r.revise(func() { r.password = password })
}

// SetTemplate replaces the game settings after validating them. Fails with
// ErrRequestAccepted once a hoster took it.
func (r *Request) SetTemplate(t models.GameTemplate) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid game template: %w", err)
	}
	return r.revise(func() { r.template = t })
}

func (r *Request) revise(apply func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accepted {
		return ErrRequestAccepted
	}
	apply()
	return nil
}

func (r *Request) accept() {
	r.mu.Lock()
	r.accepted = true
	r.mu.Unlock()
}
