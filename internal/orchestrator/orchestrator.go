// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/account"
	"github.com/KilianB/LeagueMultiChat/internal/balancer"
	"github.com/KilianB/LeagueMultiChat/internal/cache"
	"github.com/KilianB/LeagueMultiChat/internal/chatroom"
	"github.com/KilianB/LeagueMultiChat/internal/dispatch"
	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/moderation"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ErrUnregisteredParticipant is returned for events about a participant that
// never connected. The protocol layer must report a connection first.
var ErrUnregisteredParticipant = errors.New("participant is not registered")

// WelcomeMessage is sent to every participant when it connects.
const WelcomeMessage = "Beep Boop. Welcome to the league multi bot. To get started type !help.\n" +
	"An extended manual can be found here: https://github.com/KilianB/LeagueMultiChat"

// Config carries the settings of the components the orchestrator builds.
type Config struct {
	Balancer      balancer.Config
	RoomNameLimit int
	// Checker screens every incoming line. Nil blocks nothing.
	Checker moderation.Checker
	// Preferences is optional; without it mutes and modes only live in memory.
	Preferences cache.PreferenceStore
}

// Orchestrator owns the participant directory, the room registry and the
// backing accounts, and is the entry point for everything the protocol
// layer reports.
type Orchestrator struct {
	log        *logrus.Logger
	directory  *participant.Directory
	registry   *chatroom.Registry
	dispatcher *dispatch.Dispatcher
	balancer   *balancer.Balancer
	scheduler  *lobby.Scheduler
	prefs      cache.PreferenceStore

	mu       sync.RWMutex
	accounts []account.Account
}

// New creates an Orchestrator with its own directory, registry, dispatcher
// and balancer. Lobby requests are handed to scheduler.
func New(logger *logrus.Logger, scheduler *lobby.Scheduler, cfg Config) *Orchestrator {
	directory := participant.NewDirectory()
	registry := chatroom.NewRegistry(logger, directory)
	return &Orchestrator{
		log:        logger,
		directory:  directory,
		registry:   registry,
		dispatcher: dispatch.New(logger, registry, directory, cfg.Checker, cfg.RoomNameLimit),
		balancer:   balancer.New(logger, cfg.Balancer),
		scheduler:  scheduler,
		prefs:      cfg.Preferences,
	}
}

func (o *Orchestrator) Registry() *chatroom.Registry      { return o.registry }
func (o *Orchestrator) Directory() *participant.Directory { return o.directory }
func (o *Orchestrator) Scheduler() *lobby.Scheduler       { return o.scheduler }

// RegisterAccount adds acc to the pool used for contact requests. Registering
// the same handle twice replaces the earlier account.
func (o *Orchestrator) RegisterAccount(acc account.Account) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, a := range o.accounts {
		if a.Handle() == acc.Handle() {
			o.accounts[i] = acc
			return
		}
	}
	o.accounts = append(o.accounts, acc)
	o.log.WithField("account", acc.Handle()).Info("Backing account registered")
}

// UnregisterAccount removes the account with handle from the pool and
// disconnects every participant it was servicing.
func (o *Orchestrator) UnregisterAccount(ctx context.Context, handle uuid.UUID) {
	o.mu.Lock()
	o.accounts = lo.Reject(o.accounts, func(a account.Account, _ int) bool {
		return a.Handle() == handle
	})
	o.mu.Unlock()

	for _, p := range o.directory.Connected() {
		if acc := p.Account(); acc != nil && acc.Handle() == handle {
			o.ParticipantDisconnected(ctx, p.ID())
		}
	}
	o.log.WithField("account", handle).Info("Backing account unregistered")
}

// Accounts returns the registered accounts in registration order.
func (o *Orchestrator) Accounts() []account.Account {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]account.Account(nil), o.accounts...)
}

// ParticipantConnected binds the participant to acc, restoring stored
// preferences on first sight, and greets it.
func (o *Orchestrator) ParticipantConnected(ctx context.Context, id int64, name string, acc account.Account) error {
	p, created := o.directory.GetOrCreate(id, name)
	if !created && name != "" {
		p.SetDisplayName(name)
	}
	if created && o.prefs != nil {
		prefs, found, err := o.prefs.Load(ctx, id)
		if err != nil {
			o.log.WithError(err).WithField("participant", id).Warn("Failed to load preferences")
		} else if found {
			p.Restore(prefs)
		}
	}
	p.BindAccount(acc)
	if p.Presence() == models.PresenceUnknown || p.Presence() == models.PresenceOffline {
		p.SetPresence(models.PresenceAvailable)
	}

	o.log.WithFields(logrus.Fields{
		"participant": id,
		"name":        p.DisplayName(),
		"account":     acc.Handle(),
	}).Info("Participant connected")
	return p.DeliverAdmin(ctx, WelcomeMessage)
}

// ParticipantDisconnected detaches the participant from its account, leaves
// its room and saves its preferences. Unknown ids are ignored.
func (o *Orchestrator) ParticipantDisconnected(ctx context.Context, id int64) {
	p, ok := o.directory.Get(id)
	if !ok {
		return
	}
	p.BindAccount(nil)
	p.SetPresence(models.PresenceOffline)
	if room := p.LeaveRoom(); room != nil {
		o.log.WithFields(logrus.Fields{"participant": id, "room": room.Name()}).Debug("Left room on disconnect")
	}
	if o.prefs != nil {
		if err := o.prefs.Save(ctx, id, p.Preferences()); err != nil {
			o.log.WithError(err).WithField("participant", id).Warn("Failed to save preferences")
		}
	}
	o.log.WithField("participant", id).Info("Participant disconnected")
}

// PresenceChanged records a presence update for a known participant.
func (o *Orchestrator) PresenceChanged(id int64, presence models.Presence) error {
	p, ok := o.directory.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnregisteredParticipant, id)
	}
	p.SetPresence(presence)
	return nil
}

// HandleMessage routes a chat line sent by fromID.
func (o *Orchestrator) HandleMessage(ctx context.Context, fromID int64, text string) error {
	p, ok := o.directory.Get(fromID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnregisteredParticipant, fromID)
	}
	return o.dispatcher.Dispatch(ctx, p, text)
}

// HandleContactRequest forwards a contact request to the account with the
// most free contact slots. It reports false when every account is too full.
func (o *Orchestrator) HandleContactRequest(ctx context.Context, externalID int64) (bool, error) {
	return o.balancer.Assign(ctx, o.Accounts(), externalID)
}

// HostLobby queues req until a hoster takes it.
func (o *Orchestrator) HostLobby(req *lobby.Request) {
	o.scheduler.Submit(req)
}

// AnnounceAvailable subscribes h to the lobby queue until ctx is cancelled.
func (o *Orchestrator) AnnounceAvailable(ctx context.Context, h lobby.Hoster) {
	o.scheduler.AnnounceAvailable(ctx, h)
}

// BroadcastGlobal sends text as admin message to every connected participant.
func (o *Orchestrator) BroadcastGlobal(ctx context.Context, text string) error {
	o.log.WithField("text", text).Info("Sending global message")
	var errs []error
	for _, p := range o.directory.Connected() {
		if err := p.DeliverAdmin(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("participant %d: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}
