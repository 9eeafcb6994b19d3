package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, connections_limit, daily_posts_limit, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  connections_limit = EXCLUDED.connections_limit,
  daily_posts_limit = EXCLUDED.daily_posts_limit;
`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.ConnectionsLimit, u.DailyPostsLimit, u.CreatedAt)
	return err
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `
SELECT id, email, connections_limit, daily_posts_limit, created_at
  FROM users WHERE id = $1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	const q = `
SELECT id, email, connections_limit, daily_posts_limit, created_at
  FROM users WHERE email = $1;`
	return r.scanOne(ctx, tx, q, email)
}

func (r *userRepo) scanOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.ConnectionsLimit, &u.DailyPostsLimit, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &u, nil
}
