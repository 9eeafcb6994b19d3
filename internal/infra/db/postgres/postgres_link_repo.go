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

var _ repository.LinkRepository = (*linkRepo)(nil)

type linkRepo struct {
	pool *pgxpool.Pool
}

func NewLinkRepo(pool *pgxpool.Pool) repository.LinkRepository {
	return &linkRepo{pool: pool}
}

func (r *linkRepo) Save(ctx context.Context, tx repository.Tx, l *model.Link) error {
	const q = `
INSERT INTO links (id, user_id, source_id, destination_id, name, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  is_active = EXCLUDED.is_active;
`
	_, err := execSQL(ctx, r.pool, tx, q, l.ID, l.UserID, l.SourceID, l.DestinationID, l.Name, l.IsActive, l.CreatedAt)
	return err
}

func (r *linkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Link, error) {
	const q = `
SELECT id, user_id, source_id, destination_id, name, is_active, created_at
  FROM links WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var l model.Link
	if err := row.Scan(&l.ID, &l.UserID, &l.SourceID, &l.DestinationID, &l.Name, &l.IsActive, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &l, nil
}

func (r *linkRepo) ListActiveBySource(ctx context.Context, tx repository.Tx, sourceID string) ([]*model.Link, error) {
	const q = `
SELECT id, user_id, source_id, destination_id, name, is_active, created_at
  FROM links WHERE source_id = $1 AND is_active = TRUE ORDER BY created_at;`
	return r.list(ctx, tx, q, sourceID)
}

func (r *linkRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Link, error) {
	const q = `
SELECT id, user_id, source_id, destination_id, name, is_active, created_at
  FROM links WHERE user_id = $1 ORDER BY created_at;`
	return r.list(ctx, tx, q, userID)
}

func (r *linkRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM links WHERE user_id = $1 AND is_active = TRUE;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *linkRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM links WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *linkRepo) list(ctx context.Context, tx repository.Tx, q string, arg interface{}) ([]*model.Link, error) {
	rows, err := pickRows(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Link
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.ID, &l.UserID, &l.SourceID, &l.DestinationID, &l.Name, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
