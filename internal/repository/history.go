package repository

import (
	"context"
	"fmt"

	"github.com/humanizer/humanizer/internal/model"
)

// InsertRecord appends a humanization record.
func (r *Repository) InsertRecord(ctx context.Context, rec *model.HumanizationRecord) error {
	query := `
		INSERT INTO humanized_texts (id, user_id, original_text, humanized_text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.OriginalText,
		rec.HumanizedText,
		rec.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// ListRecordsByUser returns all records owned by userID, newest first.
func (r *Repository) ListRecordsByUser(ctx context.Context, userID string) ([]*model.HumanizationRecord, error) {
	query := `
		SELECT id, user_id, original_text, humanized_text, created_at
		FROM humanized_texts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]*model.HumanizationRecord, 0)
	for rows.Next() {
		var rec model.HumanizationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.OriginalText,
			&rec.HumanizedText,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
