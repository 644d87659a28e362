package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// HistoryRepositoryPG implements domain.HistoryRepository backed by PostgreSQL.
type HistoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepositoryPG.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{pool: pool}
}

// Save inserts a generation history record.
func (r *HistoryRepositoryPG) Save(ctx context.Context, rec *domain.GenerationRecord) error {
	query := `
INSERT INTO generation_history
  (id, user_id, lang, hint, image_count, image_keys, result_json, product_type, brand, elapsed_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at;
`
	return r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Lang,
		rec.Hint,
		rec.ImageCount,
		rec.ImageKeys,
		rec.ResultJSON,
		rec.ProductType,
		rec.Brand,
		rec.ElapsedMS,
	).Scan(&rec.CreatedAt)
}

// ListByUser returns summary rows for a user's history, newest first.
func (r *HistoryRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.GenerationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, lang, hint, image_count, product_type, brand, elapsed_ms, created_at
FROM generation_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GenerationSummary
	for rows.Next() {
		var s domain.GenerationSummary
		if err := rows.Scan(&s.ID, &s.Lang, &s.Hint, &s.ImageCount, &s.ProductType, &s.Brand, &s.ElapsedMS, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID fetches one record scoped to its owner.
func (r *HistoryRepositoryPG) GetByID(ctx context.Context, id, userID string) (*domain.GenerationRecord, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, lang, hint, image_count, image_keys, result_json, product_type, brand, elapsed_ms, created_at
FROM generation_history
WHERE id = $1 AND user_id = $2;
`, id, userID)

	var rec domain.GenerationRecord
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Lang,
		&rec.Hint,
		&rec.ImageCount,
		&rec.ImageKeys,
		&rec.ResultJSON,
		&rec.ProductType,
		&rec.Brand,
		&rec.ElapsedMS,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Delete removes one record scoped to its owner.
func (r *HistoryRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM generation_history
WHERE id = $1 AND user_id = $2;
`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.HistoryRepository = (*HistoryRepositoryPG)(nil)
