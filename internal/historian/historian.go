// internal/historian/historian.go
// Package historian drains closed lobby records from the Redis history queue
// and persists them in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists a batch of records, typically database.InsertLobbyRecords.
type Sink func(ctx context.Context, recs []models.LobbyRecord) error

// Config tunes the historian. Zero values fall back to the defaults.
type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds a single BLPOP so cancellation is noticed.
	PopTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = 500 * time.Millisecond
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 3 * time.Second
	}
	return c
}

// Popper is the part of the Redis client the historian reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Service batches records popped from Redis and hands them to a Sink.
type Service struct {
	log  *logrus.Logger
	rdb  Popper
	sink Sink
	cfg  Config

	batchMu sync.Mutex
	batch   []models.LobbyRecord
}

// New creates a historian reading cfg.Queue from rdb.
func New(logger *logrus.Logger, rdb Popper, sink Sink, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		log:   logger,
		rdb:   rdb,
		sink:  sink,
		cfg:   cfg,
		batch: make([]models.LobbyRecord, 0, cfg.BatchSize),
	}
}

// Run pops records until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	go s.flushLoop(ctx)

	s.log.WithField("queue", s.cfg.Queue).Info("Historian started")
	for {
		res, err := s.rdb.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
		// res[0] is the queue name and res[1] the payload. A popped record is
		// kept even when ctx ended meanwhile.
		if err == nil && len(res) >= 2 {
			s.handle(context.WithoutCancel(ctx), res[1])
		}
		if ctx.Err() != nil {
			s.flush(context.Background())
			s.log.Info("Historian stopped")
			return nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			s.log.WithError(err).Error("BLPop failed")
			time.Sleep(s.cfg.PopTimeout)
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Service) handle(ctx context.Context, payload string) {
	var rec models.LobbyRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.log.WithError(err).Warn("Invalid lobby record")
		return
	}
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()
	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch. A failed batch is put back and retried on
// the next flush.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]models.LobbyRecord, 0, s.cfg.BatchSize)
	s.batchMu.Unlock()

	if err := s.sink(ctx, pending); err != nil {
		s.log.WithError(err).WithField("records", len(pending)).Error("Failed to flush lobby history")
		s.batchMu.Lock()
		s.batch = append(pending, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.log.WithField("records", len(pending)).Debug("Flushed lobby history")
}
