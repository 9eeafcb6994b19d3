package usecase

import (
	"context"
	"time"

	"telegram-max-bridge/internal/config"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"
	"telegram-max-bridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PostLedgerUseCase = (*postLedgerUC)(nil)

// PostLedgerUseCase is the append-only forwarding history: one record per
// attempt, success or failed, pruned on a retention schedule.
type PostLedgerUseCase interface {
	Record(ctx context.Context, linkID string, sourceMsgID int64, destMsgID string, ct model.ContentType, outcome model.Outcome, errMsg string) (*model.PostRecord, error)
	// History returns one page of records newest-first plus the unfiltered
	// total for the link. Page numbers start at 1.
	History(ctx context.Context, linkID string, page, pageSize int) ([]*model.PostRecord, int, error)
	// Prune deletes records and counters past their retention windows and
	// returns the delete counts. Safe to run repeatedly and concurrently
	// with live dispatch; cutoffs are strictly in the past.
	Prune(ctx context.Context) (postsDeleted, countersDeleted int64, err error)
}

type postLedgerUC struct {
	posts  repository.PostRecordRepository
	quotas repository.QuotaRepository
	limits config.LimitsConfig
	log    *zerolog.Logger
}

func NewPostLedgerUseCase(
	posts repository.PostRecordRepository,
	quotas repository.QuotaRepository,
	limits config.LimitsConfig,
	logger *zerolog.Logger,
) *postLedgerUC {
	return &postLedgerUC{posts: posts, quotas: quotas, limits: limits, log: logger}
}

func (uc *postLedgerUC) Record(ctx context.Context, linkID string, sourceMsgID int64, destMsgID string, ct model.ContentType, outcome model.Outcome, errMsg string) (*model.PostRecord, error) {
	rec, err := model.NewPostRecord(linkID, sourceMsgID, destMsgID, ct, outcome, errMsg)
	if err != nil {
		return nil, err
	}
	if err := uc.posts.Save(ctx, repository.NoTX, rec); err != nil {
		return nil, err
	}
	metrics.IncForward(string(outcome), string(ct))
	return rec, nil
}

func (uc *postLedgerUC) History(ctx context.Context, linkID string, page, pageSize int) ([]*model.PostRecord, int, error) {
	defer logging.TraceDuration(uc.log, "PostLedgerUC.History")()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	total, err := uc.posts.CountByLink(ctx, repository.NoTX, linkID)
	if err != nil {
		return nil, 0, err
	}
	recs, err := uc.posts.ListByLink(ctx, repository.NoTX, linkID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (uc *postLedgerUC) Prune(ctx context.Context) (int64, int64, error) {
	defer logging.TraceDuration(uc.log, "PostLedgerUC.Prune")()

	now := time.Now().UTC()
	successCutoff := now.AddDate(0, 0, -uc.limits.RetentionDaysSuccess)
	failedCutoff := now.AddDate(0, 0, -uc.limits.RetentionDaysFailed)
	counterCutoff := now.AddDate(0, 0, -uc.limits.RetentionDaysCounters)

	var posts int64
	n, err := uc.posts.DeleteOlderThan(ctx, repository.NoTX, model.OutcomeSuccess, successCutoff)
	if err != nil {
		return 0, 0, err
	}
	posts += n
	metrics.AddPruned("posts_success", n)

	n, err = uc.posts.DeleteOlderThan(ctx, repository.NoTX, model.OutcomeFailed, failedCutoff)
	if err != nil {
		return posts, 0, err
	}
	posts += n
	metrics.AddPruned("posts_failed", n)

	counters, err := uc.quotas.DeleteBefore(ctx, repository.NoTX, counterCutoff)
	if err != nil {
		return posts, 0, err
	}
	metrics.AddPruned("counters", counters)

	uc.log.Info().Int64("posts_deleted", posts).Int64("counters_deleted", counters).Msg("retention prune completed")
	return posts, counters, nil
}
