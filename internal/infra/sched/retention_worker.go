package sched

import (
	"context"
	"errors"
	"time"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/infra/redis"
	"telegram-max-bridge/internal/usecase"

	"github.com/rs/zerolog"
)

// RetentionWorker periodically prunes expired post records and stale quota
// counters via the ledger use case. A Redis lock keeps multiple instances
// from pruning at the same time; losing the lock just skips the cycle.
type RetentionWorker struct {
	interval time.Duration
	ledger   usecase.PostLedgerUseCase
	locker   usecase.Locker
	log      *zerolog.Logger
}

func NewRetentionWorker(interval time.Duration, ledger usecase.PostLedgerUseCase, locker usecase.Locker, logger *zerolog.Logger) *RetentionWorker {
	wlog := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval: interval,
		ledger:   ledger,
		locker:   locker,
		log:      &wlog,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	key := redis.PruneLockKey()
	token, err := w.locker.TryLock(ctx, key, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Debug().Msg("another instance is pruning, skipping cycle")
			return
		}
		w.log.Error().Err(err).Msg("retention lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, key, token); err != nil {
			w.log.Warn().Err(err).Msg("failed to release retention lock")
		}
	}()

	posts, counters, err := w.ledger.Prune(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("retention prune failed")
		return
	}
	if posts > 0 || counters > 0 {
		w.log.Info().Int64("posts_deleted", posts).Int64("counters_deleted", counters).Msg("retention prune done")
	}
}
