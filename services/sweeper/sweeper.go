// Package sweeper periodically evicts idle attendance sessions.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
)

const sweepTimeout = time.Minute

type Sweeper struct {
	cron   *cron.Cron
	svc    attendance.Service
	ttl    time.Duration
	logger core.Logger
}

// New schedules a sweep on conf.Session.SweepSpec (a cron spec or "@every 10m").
// Overlapping runs are skipped.
func New(svc attendance.Service, conf *core.Config, logger core.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		svc:    svc,
		ttl:    conf.Session.IdleTTL,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(conf.Session.SweepSpec, s.Sweep); err != nil {
		return nil, errors.Wrapf(err, "scheduling session sweeper (%s)", conf.Session.SweepSpec)
	}
	return s, nil
}

// Sweep runs once.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.svc.ExpireIdleSessions(ctx, s.ttl)
	if err != nil {
		s.logger.Error(fmt.Sprintf("sweeping idle sessions: %v", err), err)
		return
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("%d idle session(s) expired", n))
	}
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop stops the scheduler and waits for a running sweep, up to ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
