// internal/handlers/remote_account.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/account"
	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultRPCTimeout bounds a call when the bridge is configured without one.
const DefaultRPCTimeout = 10 * time.Second

// RemoteAccount is a backing account and lobby hoster driven by a protocol
// client over the account bridge. Every method is a call the client answers
// with a "result" frame.
type RemoteAccount struct {
	handle  uuid.UUID
	name    string
	timeout time.Duration
	log     *logrus.Entry

	out    chan Frame
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending map[uuid.UUID]chan Frame
}

var (
	_ account.Account = (*RemoteAccount)(nil)
	_ lobby.Hoster    = (*RemoteAccount)(nil)
)

// NewRemoteAccount creates an account whose calls are sent as frames over
// the bridge connection.
func NewRemoteAccount(name string, timeout time.Duration, logger *logrus.Logger) *RemoteAccount {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	handle := uuid.New()
	return &RemoteAccount{
		handle:  handle,
		name:    name,
		timeout: timeout,
		log:     logger.WithFields(logrus.Fields{"account": name, "handle": handle}),
		out:     make(chan Frame, 64),
		closed:  make(chan struct{}),
		pending: make(map[uuid.UUID]chan Frame),
	}
}

func (a *RemoteAccount) Handle() uuid.UUID { return a.handle }
func (a *RemoteAccount) Name() string      { return a.name }

// Outgoing is drained by the connection's write pump.
func (a *RemoteAccount) Outgoing() <-chan Frame { return a.out }

// Close fails every pending and future call.
func (a *RemoteAccount) Close() {
	a.once.Do(func() { close(a.closed) })
}

// resolve hands a result frame to the call waiting for it. Unknown ids are
// late answers to calls that already timed out.
func (a *RemoteAccount) resolve(f Frame) bool {
	a.mu.Lock()
	ch, ok := a.pending[f.ID]
	delete(a.pending, f.ID)
	a.mu.Unlock()
	if ok {
		ch <- f
	}
	return ok
}

func (a *RemoteAccount) call(ctx context.Context, method string, args, result any) error {
	f := Frame{Type: method, ID: uuid.New()}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode %s call: %w", method, err)
		}
		f.Payload = raw
	}

	reply := make(chan Frame, 1)
	a.mu.Lock()
	a.pending[f.ID] = reply
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, f.ID)
		a.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case a.out <- f:
	case <-a.closed:
		return fmt.Errorf("%w: %s: connection closed", account.ErrTransport, method)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", account.ErrTransport, method, ctx.Err())
	}

	select {
	case res := <-reply:
		if res.Error != "" {
			return fmt.Errorf("%w: %s: %s", account.ErrTransport, method, res.Error)
		}
		if result != nil && len(res.Payload) > 0 {
			if err := json.Unmarshal(res.Payload, result); err != nil {
				return fmt.Errorf("%w: %s: bad result: %w", account.ErrTransport, method, err)
			}
		}
		return nil
	case <-a.closed:
		return fmt.Errorf("%w: %s: connection closed", account.ErrTransport, method)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", account.ErrTransport, method, ctx.Err())
	}
}

// RemainingContactCapacity asks the client how many contacts it can still add.
func (a *RemoteAccount) RemainingContactCapacity(ctx context.Context) (int, error) {
	var res capacityResult
	if err := a.call(ctx, CallQueryCapacity, nil, &res); err != nil {
		return 0, err
	}
	return res.Capacity, nil
}

// SendText asks the client to message a participant.
func (a *RemoteAccount) SendText(ctx context.Context, participantID int64, text string) error {
	return a.call(ctx, CallSendText, sendTextCall{ParticipantID: participantID, Text: text}, nil)
}

// RequestContact asks the client to accept a contact request.
func (a *RemoteAccount) RequestContact(ctx context.Context, externalID int64) error {
	return a.call(ctx, CallRequestContact, contactEvent{ExternalID: externalID}, nil)
}

// Host asks the client to create the custom game. The lobby stays open until
// the client reports lobby_closed or the connection drops.
func (a *RemoteAccount) Host(ctx context.Context, inst *lobby.Instance) error {
	req := inst.Request()
	var res hostLobbyResult
	err := a.call(ctx, CallHostLobby, hostLobbyCall{
		LobbyID:  inst.ID(),
		Name:     req.Name(),
		Password: req.Password(),
		Variant:  req.Variant().String(),
		Template: req.Template(),
	}, &res)
	if err != nil {
		return err
	}
	inst.SetChatID(res.ChatID)
	go func() {
		select {
		case <-a.closed:
			a.log.WithField("lobby", inst.ID()).Warn("Bridge closed while hosting, shutting lobby down")
			inst.Shutdown()
		case <-inst.Done():
		}
	}()
	return nil
}

func (a *RemoteAccount) InviteParticipant(ctx context.Context, participantID int64) error {
	return a.call(ctx, CallInvite, participantEvent{ParticipantID: participantID}, nil)
}

func (a *RemoteAccount) MoveToSpectate(ctx context.Context) error {
	return a.call(ctx, CallSpectate, nil, nil)
}

func (a *RemoteAccount) DisbandLobby(ctx context.Context) error {
	return a.call(ctx, CallDisband, nil, nil)
}

func (a *RemoteAccount) WriteToLobbyChat(ctx context.Context, message, chatID string) error {
	return a.call(ctx, CallLobbyChat, lobbyChatCall{ChatID: chatID, Message: message}, nil)
}

func (a *RemoteAccount) ChampionsOwnedBy(ctx context.Context, participantID int64) ([]int, error) {
	var res championsResult
	if err := a.call(ctx, CallChampions, participantEvent{ParticipantID: participantID}, &res); err != nil {
		return nil, err
	}
	return res.Champions, nil
}
