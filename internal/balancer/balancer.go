// internal/balancer/balancer.go
package balancer

import (
	"context"
	"fmt"

	"github.com/KilianB/LeagueMultiChat/internal/account"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Defaults for Config.
const (
	DefaultSafetyMargin = 10
	DefaultQueryLimit   = 8
)

// Config tunes a Balancer.
type Config struct {
	// SafetyMargin is the capacity an account keeps free; an account is only
	// picked when its remaining capacity exceeds it.
	SafetyMargin int
	// QueryLimit bounds concurrent capacity queries.
	QueryLimit int
}

// Balancer routes contact requests to the backing account with the most
// remaining contact list capacity.
type Balancer struct {
	log *logrus.Logger
	cfg Config
}

// New creates a Balancer. A negative margin or a non-positive query limit
// takes the default.
func New(logger *logrus.Logger, cfg Config) *Balancer {
	if cfg.SafetyMargin < 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = DefaultQueryLimit
	}
	return &Balancer{log: logger, cfg: cfg}
}

type capacity struct {
	value int
	ok    bool
}

// Assign asks every account for its remaining capacity and sends the contact
// request through the one with the most room. Accounts failing the query are
// skipped. Ties go to the earliest account in accounts. Returns false when no
// account exceeds the safety margin; the error is set only when the chosen
// account failed to send the request.
func (b *Balancer) Assign(ctx context.Context, accounts []account.Account, externalID int64) (bool, error) {
	results := make([]capacity, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.QueryLimit)
	for i, acc := range accounts {
		g.Go(func() error {
			n, err := acc.RemainingContactCapacity(gctx)
			if err != nil {
				b.log.WithError(err).WithField("account", acc.Handle()).Warn("Capacity query failed, skipping account")
				return nil
			}
			results[i] = capacity{value: n, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	for i, r := range results {
		if r.ok && (best < 0 || r.value > results[best].value) {
			best = i
		}
	}
	if best < 0 || results[best].value <= b.cfg.SafetyMargin {
		b.log.WithField("external", externalID).Warn("No account has contact capacity left")
		return false, nil
	}

	chosen := accounts[best]
	if err := chosen.RequestContact(ctx, externalID); err != nil {
		return false, fmt.Errorf("request contact %d via account %s: %w", externalID, chosen.Handle(), err)
	}
	b.log.WithFields(logrus.Fields{
		"external": externalID,
		"account":  chosen.Handle(),
		"capacity": results[best].value,
	}).Info("Contact request assigned")
	return true, nil
}
