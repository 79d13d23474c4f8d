// internal/handlers/listing.go
package handlers

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// RoomsHandler lists every registered room, pinned rooms first.
func RoomsHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, orch.Registry().Snapshot())
	}
}

type lobbyView struct {
	ID        int64   `json:"id"`
	RequestID int64   `json:"request_id"`
	Name      string  `json:"name"`
	Variant   string  `json:"variant"`
	Members   []int64 `json:"members"`
	Invited   []int64 `json:"invited"`
	OpenSlots int     `json:"open_slots"`
}

type lobbiesResponse struct {
	Queued  int         `json:"queued"`
	Lobbies []lobbyView `json:"lobbies"`
}

// LobbiesHandler reports the hosting queue length and every open lobby.
func LobbiesHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sched := orch.Scheduler()
		resp := lobbiesResponse{Queued: sched.Queue().Len(), Lobbies: []lobbyView{}}
		for _, inst := range sched.Store().Lobbies() {
			req := inst.Request()
			resp.Lobbies = append(resp.Lobbies, lobbyView{
				ID:        inst.ID(),
				RequestID: req.ID(),
				Name:      req.Name(),
				Variant:   req.Variant().String(),
				Members:   inst.Members(),
				Invited:   inst.Invited(),
				OpenSlots: inst.OpenSlots(),
			})
		}
		slices.SortFunc(resp.Lobbies, func(a, b lobbyView) int { return cmp.Compare(a.ID, b.ID) })
		writeJSON(w, resp)
	}
}

// HistoryLoader returns up to limit closed lobbies, newest first.
type HistoryLoader func(ctx context.Context, limit int) ([]models.LobbyRecord, error)

const defaultHistoryLimit = 20

// HistoryHandler serves closed lobbies. ?limit= caps the result at 100.
func HistoryHandler(load HistoryLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, 100)
		}
		records, err := load(r.Context(), limit)
		if err != nil {
			logrus.WithError(err).Error("Failed to load lobby history")
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []models.LobbyRecord{}
		}
		writeJSON(w, records)
	}
}

// StatsHandler reports orchestrator counters and process metrics.
func StatsHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, orch.Stats())
	}
}
