package usecase

import (
	"context"
	"time"

	"telegram-max-bridge/internal/config"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ RateLimiterUseCase = (*rateLimiterUC)(nil)

// RateLimiterUseCase enforces per-link daily post quotas and per-tenant
// connection counts. Limits are per-tenant overridable; a tenant without an
// override uses the system defaults from config.
type RateLimiterUseCase interface {
	// CanPost reports whether the link may post today and how many slots
	// remain. Quota days are UTC calendar days.
	CanPost(ctx context.Context, link *model.Link) (allowed bool, remaining int, err error)
	// Increment bumps today's counter for the link. Callers must invoke it
	// only after a confirmed successful forward.
	Increment(ctx context.Context, linkID string) (int, error)
	// RemainingConnections is the tenant's connection limit minus its active
	// link count. May be zero or negative if the limit was lowered after
	// links were created; existing links are unaffected.
	RemainingConnections(ctx context.Context, userID string) (int, error)
}

type rateLimiterUC struct {
	users  repository.UserRepository
	links  repository.LinkRepository
	quotas repository.QuotaRepository
	limits config.LimitsConfig
	log    *zerolog.Logger
}

func NewRateLimiterUseCase(
	users repository.UserRepository,
	links repository.LinkRepository,
	quotas repository.QuotaRepository,
	limits config.LimitsConfig,
	logger *zerolog.Logger,
) *rateLimiterUC {
	return &rateLimiterUC{users: users, links: links, quotas: quotas, limits: limits, log: logger}
}

func (uc *rateLimiterUC) CanPost(ctx context.Context, link *model.Link) (bool, int, error) {
	defer logging.TraceDuration(uc.log, "RateLimiterUC.CanPost")()

	limit, err := uc.dailyPostLimit(ctx, link.UserID)
	if err != nil {
		return false, 0, err
	}
	count, err := uc.quotas.CountForDay(ctx, repository.NoTX, link.ID, time.Now().UTC())
	if err != nil {
		return false, 0, err
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining > 0, remaining, nil
}

func (uc *rateLimiterUC) Increment(ctx context.Context, linkID string) (int, error) {
	defer logging.TraceDuration(uc.log, "RateLimiterUC.Increment")()
	return uc.quotas.Increment(ctx, repository.NoTX, linkID, time.Now().UTC())
}

func (uc *rateLimiterUC) RemainingConnections(ctx context.Context, userID string) (int, error) {
	defer logging.TraceDuration(uc.log, "RateLimiterUC.RemainingConnections")()

	limit, err := uc.connectionLimit(ctx, userID)
	if err != nil {
		return 0, err
	}
	active, err := uc.links.CountActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	return limit - active, nil
}

// dailyPostLimit resolves the tenant override, falling back to the system
// default when the user row carries no limit.
func (uc *rateLimiterUC) dailyPostLimit(ctx context.Context, userID string) (int, error) {
	u, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	if u.DailyPostsLimit > 0 {
		return u.DailyPostsLimit, nil
	}
	return uc.limits.DailyPostsPerLink, nil
}

func (uc *rateLimiterUC) connectionLimit(ctx context.Context, userID string) (int, error) {
	u, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	if u.ConnectionsLimit > 0 {
		return u.ConnectionsLimit, nil
	}
	return uc.limits.ConnectionsPerUser, nil
}
