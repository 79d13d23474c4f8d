// internal/lobby/scheduler.go
package lobby

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultTakeTimeout bounds a single wait for a request before the hoster
// announces itself again.
const DefaultTakeTimeout = time.Minute

// RecordFunc receives the summary of every lobby once it closed.
type RecordFunc func(ctx context.Context, rec models.LobbyRecord)

// SchedulerConfig tunes a Scheduler.
type SchedulerConfig struct {
	TakeTimeout time.Duration
	Instance    Settings
	// OnClosed is optional.
	OnClosed RecordFunc
}

// Scheduler hands queued requests to available hosters, one lobby per
// hoster at a time.
type Scheduler struct {
	log   *logrus.Logger
	queue *RequestQueue
	store *Store
	cfg   SchedulerConfig
	wg    sync.WaitGroup
}

// NewScheduler creates a scheduler with an empty queue and lobby store.
func NewScheduler(logger *logrus.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.TakeTimeout <= 0 {
		cfg.TakeTimeout = DefaultTakeTimeout
	}
	return &Scheduler{
		log:   logger,
		queue: NewRequestQueue(),
		store: NewStore(logger),
		cfg:   cfg,
	}
}

// Queue returns the pending hosting requests.
func (s *Scheduler) Queue() *RequestQueue { return s.queue }

// Store returns the lobbies currently being hosted.
func (s *Scheduler) Store() *Store { return s.store }

// Submit enqueues req. It never blocks.
func (s *Scheduler) Submit(req *Request) {
	s.queue.Submit(req)
	s.log.WithFields(logrus.Fields{
		"request": req.ID(),
		"variant": req.Variant(),
		"queued":  s.queue.Len(),
	}).Info("Hosting request queued")
}

// AnnounceAvailable starts serving the queue with h until ctx is cancelled.
func (s *Scheduler) AnnounceAvailable(ctx context.Context, h Hoster) {
	s.wg.Add(1)
	go s.serve(ctx, h)
}

// Wait blocks until every hoster worker returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) serve(ctx context.Context, h Hoster) {
	defer s.wg.Done()
	log := s.log.WithField("hoster", h.Handle())
	log.Info("Hoster available")

	for {
		req, err := s.take(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Hoster withdrawn")
				return
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				log.WithError(err).Warn("Take interrupted")
			}
			continue
		}
		s.host(ctx, h, req, log)
	}
}

func (s *Scheduler) take(ctx context.Context) (*Request, error) {
	attempt, cancel := context.WithTimeout(ctx, s.cfg.TakeTimeout)
	defer cancel()
	return s.queue.Take(attempt)
}

func (s *Scheduler) host(ctx context.Context, h Hoster, req *Request, log *logrus.Entry) {
	req.accept()
	inst := NewInstance(req, h, s.log, s.cfg.Instance)
	log = log.WithFields(logrus.Fields{"request": req.ID(), "lobby": inst.ID()})

	if err := h.Host(ctx, inst); err != nil {
		log.WithError(err).Error("Failed to host lobby")
		inst.Shutdown()
		if r := req.Requester(); r != nil {
			r.LobbyClosed(ctx, inst)
		}
		return
	}
	s.store.Add(inst)
	log.Info("Lobby open")
	if r := req.Requester(); r != nil {
		r.LobbyOpened(ctx, inst)
	}

	select {
	case <-inst.Done():
	case <-ctx.Done():
		disbandCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.DisbandLobby(disbandCtx); err != nil {
			log.WithError(err).Warn("Failed to disband lobby")
		}
		cancel()
		inst.Shutdown()
	}

	s.store.Delete(inst.ID())
	if r := req.Requester(); r != nil {
		r.LobbyClosed(ctx, inst)
	}
	if s.cfg.OnClosed != nil {
		s.cfg.OnClosed(ctx, inst.Record())
	}
}
