package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
)

var _ repository.PostRecordRepository = (*postRecordRepo)(nil)

type postRecordRepo struct {
	pool *pgxpool.Pool
}

func NewPostRecordRepo(pool *pgxpool.Pool) repository.PostRecordRepository {
	return &postRecordRepo{pool: pool}
}

// Save appends one ledger row. There is deliberately no ON CONFLICT clause:
// records are immutable and a duplicate id is a bug worth surfacing.
func (r *postRecordRepo) Save(ctx context.Context, tx repository.Tx, p *model.PostRecord) error {
	const q = `
INSERT INTO post_records (id, link_id, source_message_id, dest_message_id, content_type, outcome, error_message, created_at)
VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.LinkID, p.SourceMessageID, p.DestMessageID, string(p.ContentType), string(p.Outcome), p.ErrorMessage, p.CreatedAt,
	)
	return err
}

func (r *postRecordRepo) ListByLink(ctx context.Context, tx repository.Tx, linkID string, offset, limit int) ([]*model.PostRecord, error) {
	const q = `
SELECT id, link_id, COALESCE(source_message_id, 0), COALESCE(dest_message_id, ''), content_type, outcome, COALESCE(error_message, ''), created_at
  FROM post_records
 WHERE link_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3;`
	rows, err := pickRows(ctx, r.pool, tx, q, linkID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PostRecord
	for rows.Next() {
		var p model.PostRecord
		var ct, outcome string
		if err := rows.Scan(&p.ID, &p.LinkID, &p.SourceMessageID, &p.DestMessageID, &ct, &outcome, &p.ErrorMessage, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.ContentType = model.ContentType(ct)
		p.Outcome = model.Outcome(outcome)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *postRecordRepo) CountByLink(ctx context.Context, tx repository.Tx, linkID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM post_records WHERE link_id = $1;`, linkID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *postRecordRepo) DeleteOlderThan(ctx context.Context, tx repository.Tx, outcome model.Outcome, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM post_records WHERE outcome = $1 AND created_at < $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, string(outcome), cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
