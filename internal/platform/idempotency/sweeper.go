package idempotency

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sweepTimeout = time.Minute

// Sweeper periodically deletes expired reservations from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	batch    int
	logger   *zap.Logger
	now      func() time.Time

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewSweeper returns a sweeper removing at most batch records every interval.
func NewSweeper(store Store, interval time.Duration, batch int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		batch:    batch,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	if s.store == nil || s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	removed, err := s.store.CleanupExpired(runCtx, s.now().UTC(), s.batch)
	if err != nil {
		s.logger.Error("idempotency sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		s.logger.Info("idempotency sweep removed reservations", zap.Int("count", removed))
	}
	return removed
}
