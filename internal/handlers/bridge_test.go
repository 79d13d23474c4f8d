package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/auth"
	"github.com/KilianB/LeagueMultiChat/internal/balancer"
	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/orchestrator"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeEnv struct {
	orch   *orchestrator.Orchestrator
	signer *auth.Signer
	srv    *httptest.Server
}

func newBridgeEnv(t *testing.T) *bridgeEnv {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	signer, err := auth.NewSigner(time.Hour)
	require.NoError(t, err)
	sched := lobby.NewScheduler(logger, lobby.SchedulerConfig{TakeTimeout: 50 * time.Millisecond})
	orch := orchestrator.New(logger, sched, orchestrator.Config{
		Balancer: balancer.Config{SafetyMargin: balancer.DefaultSafetyMargin},
	})

	mux := http.NewServeMux()
	mux.Handle("/account/ws", NewAccountBridge(logger, orch, signer, time.Second))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &bridgeEnv{orch: orch, signer: signer, srv: srv}
}

// client is a scripted protocol client. Calls are answered by respond and
// recorded in order.
type client struct {
	t    *testing.T
	conn *websocket.Conn

	mu      sync.Mutex
	calls   []Frame
	respond func(Frame) (any, string)
}

func (e *bridgeEnv) dial(t *testing.T, query string, respond func(Frame) (any, string)) *client {
	t.Helper()
	token, err := e.signer.Issue("bridge-test", false)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, e.srv.URL+"/account/ws"+query, &websocket.DialOptions{
		Subprotocols: []string{AccountSubprotocol},
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)

	c := &client{t: t, conn: conn, respond: respond}
	go c.serve()
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return c
}

func (c *client) serve() {
	ctx := context.Background()
	for {
		var f Frame
		if err := wsjson.Read(ctx, c.conn, &f); err != nil {
			return
		}
		c.mu.Lock()
		c.calls = append(c.calls, f)
		respond := c.respond
		c.mu.Unlock()

		reply := Frame{Type: EventResult, ID: f.ID}
		if respond != nil {
			result, errText := respond(f)
			reply.Error = errText
			if result != nil {
				reply.Payload, _ = json.Marshal(result)
			}
		}
		if err := wsjson.Write(ctx, c.conn, reply); err != nil {
			return
		}
	}
}

func (c *client) send(typ string, payload any) {
	c.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(c.t, err)
	require.NoError(c.t, wsjson.Write(context.Background(), c.conn, Frame{Type: typ, Payload: raw}))
}

func (c *client) callsOf(typ string) []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Frame
	for _, f := range c.calls {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *client) texts() []string {
	var out []string
	for _, f := range c.callsOf(CallSendText) {
		var call sendTextCall
		if json.Unmarshal(f.Payload, &call) == nil {
			out = append(out, call.Text)
		}
	}
	return out
}

func TestBridgeRejectsMissingOrBadToken(t *testing.T) {
	env := newBridgeEnv(t)
	ctx := context.Background()

	_, resp, err := websocket.Dial(ctx, env.srv.URL+"/account/ws", &websocket.DialOptions{
		Subprotocols: []string{AccountSubprotocol},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, env.srv.URL+"/account/ws", &websocket.DialOptions{
		Subprotocols: []string{AccountSubprotocol},
		HTTPHeader:   http.Header{"Authorization": {"Bearer nope"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBridgeRoutesParticipantEvents(t *testing.T) {
	env := newBridgeEnv(t)
	c := env.dial(t, "", nil)

	require.Eventually(t, func() bool { return len(env.orch.Accounts()) == 1 }, time.Second, 10*time.Millisecond)

	c.send(EventParticipantConnected, participantEvent{ParticipantID: 1, Name: "alice"})
	require.Eventually(t, func() bool {
		texts := c.texts()
		return len(texts) == 1 && strings.Contains(texts[0], "Welcome")
	}, 2*time.Second, 10*time.Millisecond)

	c.send(EventMessage, participantEvent{ParticipantID: 1, Text: "!join lounge"})
	require.Eventually(t, func() bool {
		_, ok := env.orch.Registry().Get("lounge")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	c.send(EventPresence, participantEvent{ParticipantID: 1, Presence: "dnd"})
	require.Eventually(t, func() bool {
		p, _ := env.orch.Directory().Get(1)
		return p.Presence() == models.PresenceBusy
	}, 2*time.Second, 10*time.Millisecond)

	c.send(EventParticipantDisconnected, participantEvent{ParticipantID: 1})
	require.Eventually(t, func() bool {
		_, ok := env.orch.Registry().Get("lounge")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridgeContactRequestUsesCapacity(t *testing.T) {
	env := newBridgeEnv(t)
	c := env.dial(t, "", func(f Frame) (any, string) {
		if f.Type == CallQueryCapacity {
			return capacityResult{Capacity: 40}, ""
		}
		return nil, ""
	})
	require.Eventually(t, func() bool { return len(env.orch.Accounts()) == 1 }, time.Second, 10*time.Millisecond)

	c.send(EventContactRequest, contactEvent{ExternalID: 555})
	require.Eventually(t, func() bool { return len(c.callsOf(CallRequestContact)) == 1 }, 2*time.Second, 10*time.Millisecond)

	var call contactEvent
	require.NoError(t, json.Unmarshal(c.callsOf(CallRequestContact)[0].Payload, &call))
	assert.Equal(t, int64(555), call.ExternalID)
}

func TestBridgeCallErrorsAreTransportErrors(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	acc := NewRemoteAccount("x", 50*time.Millisecond, logger)

	// Nobody drains the outgoing queue or answers: the call times out.
	_, err := acc.RemainingContactCapacity(context.Background())
	assert.Error(t, err)

	acc.Close()
	err = acc.SendText(context.Background(), 1, "hi")
	assert.ErrorContains(t, err, "connection closed")
}

func TestBridgeHosterLifecycle(t *testing.T) {
	env := newBridgeEnv(t)
	c := env.dial(t, "?hoster=true", func(f Frame) (any, string) {
		if f.Type == CallHostLobby {
			return hostLobbyResult{ChatID: "chat-1"}, ""
		}
		return nil, ""
	})
	require.Eventually(t, func() bool { return len(env.orch.Accounts()) == 1 }, time.Second, 10*time.Millisecond)

	tmpl := models.DefaultTemplate(models.MapSummonersRift)
	tmpl.TeamSize = 1
	req, err := lobby.NewRequest(lobby.RequestConfig{Template: tmpl, Name: "bridge game"})
	require.NoError(t, err)
	env.orch.HostLobby(req)

	var inst *lobby.Instance
	require.Eventually(t, func() bool {
		for _, l := range env.orch.Scheduler().Store().Lobbies() {
			inst = l
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	var host hostLobbyCall
	require.NoError(t, json.Unmarshal(c.callsOf(CallHostLobby)[0].Payload, &host))
	assert.Equal(t, "bridge game", host.Name)
	assert.Equal(t, inst.ID(), host.LobbyID)

	c.send(EventLobbyMember, lobbyEvent{LobbyID: inst.ID(), ParticipantID: 9, Team: int(lobby.Team1)})
	require.Eventually(t, func() bool { return len(inst.Members()) == 1 }, 2*time.Second, 10*time.Millisecond)

	c.send(EventLobbyClosed, lobbyEvent{LobbyID: inst.ID()})
	require.Eventually(t, func() bool { return len(env.orch.Scheduler().Store().Lobbies()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, inst.Closed())
}

func TestBridgeDisconnectUnregistersAccount(t *testing.T) {
	env := newBridgeEnv(t)
	c := env.dial(t, "", nil)
	require.Eventually(t, func() bool { return len(env.orch.Accounts()) == 1 }, time.Second, 10*time.Millisecond)

	c.send(EventParticipantConnected, participantEvent{ParticipantID: 1, Name: "alice"})
	require.Eventually(t, func() bool {
		p, ok := env.orch.Directory().Get(1)
		return ok && p.Connected()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.conn.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return len(env.orch.Accounts()) == 0 }, 2*time.Second, 10*time.Millisecond)
	p, _ := env.orch.Directory().Get(1)
	assert.False(t, p.Connected())
}
