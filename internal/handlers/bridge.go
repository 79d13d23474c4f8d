// internal/handlers/bridge.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/auth"
	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/KilianB/LeagueMultiChat/internal/middleware"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/orchestrator"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// AccountSubprotocol is the websocket subprotocol spoken on the bridge.
const AccountSubprotocol = "account"

// AccountBridge lets an out of process protocol client act as a backing
// account, and optionally as a lobby hoster, over a websocket.
type AccountBridge struct {
	log        *logrus.Logger
	orch       *orchestrator.Orchestrator
	signer     *auth.Signer
	rpcTimeout time.Duration
}

// NewAccountBridge creates the websocket endpoint protocol clients connect
// their backing accounts to.
func NewAccountBridge(logger *logrus.Logger, orch *orchestrator.Orchestrator, signer *auth.Signer, rpcTimeout time.Duration) *AccountBridge {
	return &AccountBridge{log: logger, orch: orch, signer: signer, rpcTimeout: rpcTimeout}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// ServeHTTP authenticates the client, upgrades the connection and serves
// it until either side closes.
func (b *AccountBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	claims, err := b.signer.Authenticate(token)
	if err != nil {
		b.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("Rejected account token")
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{AccountSubprotocol},
	})
	if err != nil {
		b.log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != AccountSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the account subprotocol")
		return
	}
	middleware.LogWebSocketConnect(b.log, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	acc := NewRemoteAccount(claims.Subject, b.rpcTimeout, b.log)
	b.orch.RegisterAccount(acc)

	events := make(chan Frame, 64)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.writePump(ctx, cancel, c, acc)
	}()
	go func() {
		defer wg.Done()
		for f := range events {
			if err := b.handleEvent(ctx, acc, f); err != nil {
				acc.log.WithError(err).WithField("event", f.Type).Warn("Event failed")
			}
		}
	}()

	if claims.Hoster || r.URL.Query().Get("hoster") == "true" {
		acc.log.Info("Account announced as lobby hoster")
		b.orch.AnnounceAvailable(ctx, acc)
	}

	readErr := b.readPump(ctx, c, acc, events)

	cancel()
	acc.Close()
	close(events)
	wg.Wait()
	b.orch.UnregisterAccount(context.Background(), acc.Handle())
	middleware.LogWebSocketDisconnect(b.log, r.RemoteAddr, r.URL.Path, readErr)

	if websocket.CloseStatus(readErr) == -1 {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump resolves results inline and queues everything else for the event
// worker, so a handler waiting on a call never blocks the read side.
func (b *AccountBridge) readPump(ctx context.Context, c *websocket.Conn, acc *RemoteAccount, events chan<- Frame) error {
	for {
		var f Frame
		if err := wsjson.Read(ctx, c, &f); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if f.Type == EventResult {
			if !acc.resolve(f) {
				acc.log.WithField("id", f.ID).Debug("Result for unknown or expired call")
			}
			continue
		}
		select {
		case events <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *AccountBridge) writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, acc *RemoteAccount) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-acc.Outgoing():
			if err := wsjson.Write(ctx, c, f); err != nil {
				if !errors.Is(err, context.Canceled) {
					acc.log.WithError(err).Warn("Write to bridge failed")
				}
				cancel()
				return
			}
		}
	}
}

func (b *AccountBridge) handleEvent(ctx context.Context, acc *RemoteAccount, f Frame) error {
	switch f.Type {
	case EventParticipantConnected, EventParticipantDisconnected, EventPresence, EventMessage:
		var ev participantEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			return fmt.Errorf("bad %s payload: %w", f.Type, err)
		}
		switch f.Type {
		case EventParticipantConnected:
			return b.orch.ParticipantConnected(ctx, ev.ParticipantID, ev.Name, acc)
		case EventParticipantDisconnected:
			b.orch.ParticipantDisconnected(ctx, ev.ParticipantID)
			return nil
		case EventPresence:
			return b.orch.PresenceChanged(ev.ParticipantID, models.ParsePresence(ev.Presence))
		default:
			return b.orch.HandleMessage(ctx, ev.ParticipantID, ev.Text)
		}

	case EventContactRequest:
		var ev contactEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			return fmt.Errorf("bad %s payload: %w", f.Type, err)
		}
		assigned, err := b.orch.HandleContactRequest(ctx, ev.ExternalID)
		if err != nil {
			return err
		}
		if !assigned {
			acc.log.WithField("external", ev.ExternalID).Warn("No account has contact capacity left")
		}
		return nil

	case EventLobbyMember, EventLobbyClosed:
		var ev lobbyEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			return fmt.Errorf("bad %s payload: %w", f.Type, err)
		}
		inst, ok := b.orch.Scheduler().Store().Get(ev.LobbyID)
		if !ok {
			return fmt.Errorf("lobby %d is not open", ev.LobbyID)
		}
		if inst.Hoster() != lobby.Hoster(acc) {
			return fmt.Errorf("lobby %d is hosted by another account", ev.LobbyID)
		}
		if f.Type == EventLobbyClosed {
			inst.Shutdown()
			return nil
		}
		team := lobby.Team(ev.Team)
		if team < lobby.TeamDeparted || team > lobby.TeamSpectators {
			return fmt.Errorf("unknown team %d", ev.Team)
		}
		inst.MemberUpdate(ctx, ev.ParticipantID, team)
		return nil
	}
	return fmt.Errorf("unknown event type %q", f.Type)
}
