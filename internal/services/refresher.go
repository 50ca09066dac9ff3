package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memed/arena/pkg/logger"
)

// Refresh policies.
const (
	PolicyInterval = "interval"
	PolicyBlock    = "block"
)

// Refresher keeps the service cache fresh until its context ends.
//
// With PolicyInterval every tick re-reads everything. With PolicyBlock the
// tick only polls the block height and re-reads when it moved.
type Refresher struct {
	svc      *BattleService
	policy   string
	interval time.Duration
	log      *logrus.Entry

	lastHeight uint64
}

// NewRefresher validates policy and interval.
func NewRefresher(svc *BattleService, policy string, interval time.Duration) (*Refresher, error) {
	switch policy {
	case PolicyInterval, PolicyBlock:
	default:
		return nil, fmt.Errorf("unknown refresh policy %q", policy)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	return &Refresher{
		svc:      svc,
		policy:   policy,
		interval: interval,
		log:      logger.WithFields(logrus.Fields{"component": "refresher", "policy": policy}),
	}, nil
}

// Run blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.log.WithField("interval", r.interval).Info("refresher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one refresh decision. It reports whether a refresh ran.
func (r *Refresher) Tick(ctx context.Context) bool {
	if r.policy == PolicyBlock {
		height, err := r.svc.reader.BlockNumber(ctx)
		if err != nil {
			r.log.WithError(err).Warn("block height poll failed")
			return false
		}
		if height == r.lastHeight {
			return false
		}
		r.lastHeight = height
	}
	if err := r.svc.RefreshAll(ctx); err != nil {
		r.log.WithError(err).Warn("refresh failed")
	}
	return true
}
