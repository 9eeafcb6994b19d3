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

var _ repository.DestinationChannelRepository = (*destinationChannelRepo)(nil)

type destinationChannelRepo struct {
	pool *pgxpool.Pool
}

func NewDestinationChannelRepo(pool *pgxpool.Pool) repository.DestinationChannelRepository {
	return &destinationChannelRepo{pool: pool}
}

func (r *destinationChannelRepo) Save(ctx context.Context, tx repository.Tx, ch *model.DestinationChannel) error {
	const q = `
INSERT INTO destination_channels (id, user_id, chat_id, name, bot_token, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  chat_id = EXCLUDED.chat_id,
  name = EXCLUDED.name,
  bot_token = EXCLUDED.bot_token,
  is_active = EXCLUDED.is_active;
`
	_, err := execSQL(ctx, r.pool, tx, q, ch.ID, ch.UserID, ch.ChatID, ch.Name, ch.BotToken, ch.IsActive, ch.CreatedAt)
	return err
}

func (r *destinationChannelRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DestinationChannel, error) {
	const q = `
SELECT id, user_id, chat_id, name, bot_token, is_active, created_at
  FROM destination_channels WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var ch model.DestinationChannel
	if err := row.Scan(&ch.ID, &ch.UserID, &ch.ChatID, &ch.Name, &ch.BotToken, &ch.IsActive, &ch.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &ch, nil
}

func (r *destinationChannelRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.DestinationChannel, error) {
	const q = `
SELECT id, user_id, chat_id, name, bot_token, is_active, created_at
  FROM destination_channels WHERE user_id = $1 ORDER BY created_at;`
	rows, err := pickRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DestinationChannel
	for rows.Next() {
		var ch model.DestinationChannel
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.ChatID, &ch.Name, &ch.BotToken, &ch.IsActive, &ch.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &ch)
	}
	return out, rows.Err()
}

func (r *destinationChannelRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM destination_channels WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
