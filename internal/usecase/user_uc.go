package usecase

import (
	"context"
	"errors"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes tenant-account operations used by the management API.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetLimits stores per-tenant overrides. Zero means "use the system
	// default". Lowering a limit never deactivates existing links.
	SetLimits(ctx context.Context, userID string, connectionsLimit, dailyPostsLimit int) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, tm: tm, log: logger}
}

func (uc *userUC) RegisterOrFetch(ctx context.Context, email string) (*model.User, error) {
	defer logging.TraceDuration(uc.log, "UserUC.RegisterOrFetch")()

	var user *model.User
	// Find and save run in one transaction so two concurrent registrations
	// of the same email cannot both create a row.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		existing, err := uc.users.FindByEmail(ctx, tx, email)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		nu, err := model.NewUser("", email)
		if err != nil {
			return err
		}
		if err := uc.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		user = nu
		return nil
	})
	return user, err
}

func (uc *userUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	return uc.users.FindByID(ctx, repository.NoTX, id)
}

func (uc *userUC) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return uc.users.FindByEmail(ctx, repository.NoTX, email)
}

func (uc *userUC) SetLimits(ctx context.Context, userID string, connectionsLimit, dailyPostsLimit int) (*model.User, error) {
	defer logging.TraceDuration(uc.log, "UserUC.SetLimits")()

	if connectionsLimit < 0 || dailyPostsLimit < 0 {
		return nil, domain.ErrInvalidArgument
	}

	var user *model.User
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		u, err := uc.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		u.ConnectionsLimit = connectionsLimit
		u.DailyPostsLimit = dailyPostsLimit
		if err := uc.users.Save(ctx, tx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}
