// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/KilianB/LeagueMultiChat/internal/middleware"
	"github.com/KilianB/LeagueMultiChat/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	AllowedOrigins []string
	// History is nil when no database is configured.
	History HistoryLoader
}

// NewRouter mounts the account bridge and the read only JSON endpoints.
func NewRouter(logger *logrus.Logger, orch *orchestrator.Orchestrator, bridge *AccountBridge, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(logger))

	r.Handle("/account/ws", bridge)

	r.Group(func(r chi.Router) {
		origins := cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"https://*", "http://*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/rooms", RoomsHandler(orch))
		r.Get("/lobbies", LobbiesHandler(orch))
		r.Get("/stats", StatsHandler(orch))
		if cfg.History != nil {
			r.Get("/lobbies/history", HistoryHandler(cfg.History))
		}
	})
	return r
}
