// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/auth"
	"github.com/KilianB/LeagueMultiChat/internal/balancer"
	"github.com/KilianB/LeagueMultiChat/internal/cache"
	"github.com/KilianB/LeagueMultiChat/internal/chatroom"
	"github.com/KilianB/LeagueMultiChat/internal/config"
	"github.com/KilianB/LeagueMultiChat/internal/database"
	"github.com/KilianB/LeagueMultiChat/internal/handlers"
	"github.com/KilianB/LeagueMultiChat/internal/historian"
	"github.com/KilianB/LeagueMultiChat/internal/lobby"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/moderation"
	"github.com/KilianB/LeagueMultiChat/internal/orchestrator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	issue := flag.String("issue-token", "", "print a bridge token for the named account and exit")
	hoster := flag.Bool("hoster", false, "with -issue-token: allow the account to host lobbies")
	flag.Parse()

	logger := logrus.New()
	if err := run(logger, *issue, *hoster); err != nil {
		logger.WithError(err).Fatal("Server exited")
	}
}

func run(logger *logrus.Logger, issue string, hoster bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Level())

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	if issue != "" {
		token, err := signer.Issue(issue, hoster)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}
	if cfg.TokenPrivateKey == "" {
		logger.Warn("No token keys configured, using an ephemeral key pair. Issued tokens stop working on restart.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prefs, closePrefs, err := openPreferences(cfg, logger)
	if err != nil {
		return err
	}
	defer closePrefs()

	var history handlers.HistoryLoader
	historianDone := make(chan struct{})
	close(historianDone)
	if cfg.DatabaseURL != "" {
		if err := database.ConnectDB(cfg.DatabaseURL); err != nil {
			return err
		}
		defer database.DB.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		history = database.RecentLobbies
		logger.Info("Connected to database")

		if cache.Rdb != nil && cfg.HistorianEmbedded {
			hs := historian.New(logger, cache.Rdb, database.InsertLobbyRecords, historian.Config{
				Queue:      cache.LobbyHistoryQueue,
				BatchSize:  cfg.HistorianBatchSize,
				FlushDelay: cfg.HistorianFlushDelay,
			})
			historianDone = make(chan struct{})
			go func() {
				defer close(historianDone)
				hs.Run(ctx)
			}()
		}
	}

	sched := lobby.NewScheduler(logger, lobby.SchedulerConfig{
		TakeTimeout: cfg.TakeTimeout,
		Instance:    lobby.Settings{SpectateThreshold: cfg.SpectateThreshold},
		OnClosed:    recordLobby(logger),
	})

	checker, err := moderation.NewBlocklist(cfg.BlockedWordList())
	if err != nil {
		return err
	}
	orch := orchestrator.New(logger, sched, orchestrator.Config{
		Balancer: balancer.Config{
			SafetyMargin: cfg.ContactSafetyMargin,
			QueryLimit:   cfg.CapacityQueryLimit,
		},
		RoomNameLimit: cfg.RoomNameLimit,
		Checker:       checker,
		Preferences:   prefs,
	})

	if err := registerPinnedRooms(ctx, cfg, orch); err != nil {
		return err
	}
	lfg := chatroom.NewLFG(logger, sched, cfg.InviteTimeout)
	if _, err := orch.Registry().RegisterPinned(chatroom.LfgRoomName, "", lfg); err != nil {
		return err
	}

	bridge := handlers.NewAccountBridge(logger, orch, signer, cfg.RPCTimeout)
	srv := &http.Server{
		Addr: ":" + cfg.ServicePort,
		Handler: handlers.NewRouter(logger, orch, bridge, handlers.RouterConfig{
			AllowedOrigins: cfg.AllowedOriginList(),
			History:        history,
		}),
		// Bridge connections are hijacked and outlive Shutdown; deriving
		// request contexts from ctx ends them on signal.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown incomplete")
	}
	sched.Wait()
	<-historianDone
	return nil
}

func newSigner(cfg config.Config) (*auth.Signer, error) {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	if cfg.TokenPrivateKey != "" {
		return auth.LoadSigner(cfg.TokenPrivateKey, cfg.TokenPublicKey, ttl)
	}
	return auth.NewSigner(ttl)
}

// openPreferences picks Redis when configured and the embedded store otherwise.
func openPreferences(cfg config.Config, logger *logrus.Logger) (cache.PreferenceStore, func(), error) {
	if cfg.RedisAddr != "" {
		if err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
			return nil, nil, err
		}
		logger.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
		return cache.NewRedisPreferences(cache.Rdb), func() { cache.Rdb.Close() }, nil
	}
	db, err := cache.OpenBadger(cfg.BadgerDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.BadgerDir == "" {
		logger.Warn("No REDIS_ADDR or BADGER_DIR configured, preferences are kept in memory only")
	}
	return cache.NewBadgerPreferences(db), func() { db.Close() }, nil
}

// registerPinnedRooms prefers the database catalogue and falls back to
// PINNED_ROOMS when it is unavailable or empty.
func registerPinnedRooms(ctx context.Context, cfg config.Config, orch *orchestrator.Orchestrator) error {
	var rooms []database.PinnedRoom
	if database.DB != nil {
		var err error
		if rooms, err = database.ListPinnedRooms(ctx); err != nil {
			return err
		}
	}
	if len(rooms) == 0 {
		for _, name := range cfg.PinnedRoomNames() {
			rooms = append(rooms, database.PinnedRoom{Name: name})
		}
	}
	for _, room := range rooms {
		if _, err := orch.Registry().RegisterPinned(room.Name, room.Password, nil); err != nil {
			return err
		}
	}
	return nil
}

// recordLobby sends closed lobbies to the historian queue when Redis is
// available and straight to Postgres otherwise.
func recordLobby(logger *logrus.Logger) lobby.RecordFunc {
	return func(ctx context.Context, rec models.LobbyRecord) {
		log := logger.WithFields(logrus.Fields{"lobby": rec.LobbyID, "members": len(rec.Members)})
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		var err error
		switch {
		case cache.Rdb != nil:
			err = cache.PublishLobbyRecord(ctx, rec)
		case database.DB != nil:
			err = database.InsertLobbyRecord(ctx, rec)
		}
		if err != nil {
			log.WithError(err).Error("Failed to record lobby")
			return
		}
		log.Info("Lobby closed")
	}
}
