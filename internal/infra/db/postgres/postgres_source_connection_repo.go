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

var _ repository.SourceConnectionRepository = (*sourceConnectionRepo)(nil)

type sourceConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewSourceConnectionRepo(pool *pgxpool.Pool) repository.SourceConnectionRepository {
	return &sourceConnectionRepo{pool: pool}
}

const sourceConnectionColumns = `
id, user_id, channel_id, channel_username, bot_token, webhook_secret, webhook_url, is_active, created_at`

func (r *sourceConnectionRepo) Save(ctx context.Context, tx repository.Tx, c *model.SourceConnection) error {
	const q = `
INSERT INTO source_connections (id, user_id, channel_id, channel_username, bot_token, webhook_secret, webhook_url, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  channel_username = EXCLUDED.channel_username,
  webhook_url = EXCLUDED.webhook_url,
  is_active = EXCLUDED.is_active;
`
	// webhook_secret is intentionally not updatable: the capability token is
	// issued once and never re-issued for another connection.
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.UserID, c.ChannelID, c.ChannelUsername, c.BotToken, c.WebhookSecret, c.WebhookURL, c.IsActive, c.CreatedAt,
	)
	return err
}

func (r *sourceConnectionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SourceConnection, error) {
	const q = `SELECT` + sourceConnectionColumns + ` FROM source_connections WHERE id = $1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *sourceConnectionRepo) FindActiveByWebhookSecret(ctx context.Context, tx repository.Tx, secret string) (*model.SourceConnection, error) {
	const q = `SELECT` + sourceConnectionColumns + ` FROM source_connections WHERE webhook_secret = $1 AND is_active = TRUE;`
	return r.scanOne(ctx, tx, q, secret)
}

func (r *sourceConnectionRepo) FindByWebhookSecret(ctx context.Context, tx repository.Tx, secret string) (*model.SourceConnection, error) {
	const q = `SELECT` + sourceConnectionColumns + ` FROM source_connections WHERE webhook_secret = $1;`
	return r.scanOne(ctx, tx, q, secret)
}

func (r *sourceConnectionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.SourceConnection, error) {
	const q = `SELECT` + sourceConnectionColumns + ` FROM source_connections WHERE user_id = $1 ORDER BY created_at;`
	rows, err := pickRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SourceConnection
	for rows.Next() {
		var c model.SourceConnection
		if err := rows.Scan(&c.ID, &c.UserID, &c.ChannelID, &c.ChannelUsername, &c.BotToken, &c.WebhookSecret, &c.WebhookURL, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *sourceConnectionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	// Dependent links go with it via ON DELETE CASCADE.
	const q = `DELETE FROM source_connections WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *sourceConnectionRepo) scanOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.SourceConnection, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var c model.SourceConnection
	if err := row.Scan(&c.ID, &c.UserID, &c.ChannelID, &c.ChannelUsername, &c.BotToken, &c.WebhookSecret, &c.WebhookURL, &c.IsActive, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}
