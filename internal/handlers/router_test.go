package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/auth"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	orch := newListingOrchestrator(t)
	signer, err := auth.NewSigner(time.Hour)
	require.NoError(t, err)
	bridge := NewAccountBridge(logger, orch, signer, time.Second)

	withoutHistory := NewRouter(logger, orch, bridge, RouterConfig{})
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/rooms", http.StatusOK},
		{http.MethodGet, "/lobbies", http.StatusOK},
		{http.MethodGet, "/stats", http.StatusOK},
		{http.MethodGet, "/lobbies/history", http.StatusNotFound},
		{http.MethodPost, "/rooms", http.StatusMethodNotAllowed},
		{http.MethodGet, "/account/ws", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		withoutHistory.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}

	withHistory := NewRouter(logger, orch, bridge, RouterConfig{
		History: func(context.Context, int) ([]models.LobbyRecord, error) { return nil, nil },
	})
	w := httptest.NewRecorder()
	withHistory.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lobbies/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRouterCORS(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	orch := newListingOrchestrator(t)
	signer, err := auth.NewSigner(0)
	require.NoError(t, err)
	h := NewRouter(logger, orch, NewAccountBridge(logger, orch, signer, 0), RouterConfig{
		AllowedOrigins: []string{"https://multichat.example"},
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Origin", "https://multichat.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://multichat.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
