package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

// HistoryRepository stores analysis outcomes. GetByID performs no ownership
// check; callers must authorize first.
type HistoryRepository interface {
	Append(ctx context.Context, record *domain.HistoryRecord) (string, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error)
	GetByID(ctx context.Context, id string) (*domain.HistoryRecord, error)
}

type historyRepository struct {
	db      DBTX
	timeout time.Duration
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(db DBTX, timeout time.Duration) HistoryRepository {
	return &historyRepository{db: db, timeout: timeout}
}

const historyColumns = `id, user_id, symptoms, severity, conditions, recommendations,
            analysis_note, image_filename, pdf_name, created_at`

func (r *historyRepository) Append(ctx context.Context, record *domain.HistoryRecord) (string, error) {
	const query = `
        INSERT INTO symptom_history (user_id, symptoms, severity, conditions, recommendations,
            analysis_note, image_filename, pdf_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	record.Normalize()
	err := r.db.QueryRow(ctx, query,
		record.UserID,
		record.SymptomsText,
		record.Severity,
		record.Conditions,
		record.Recommendations,
		record.AnalysisNote,
		record.ImageFilename,
		record.PDFName,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return "", mapStoreError("append history", err)
	}
	return record.ID, nil
}

func (r *historyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list history: limit %d: %w", limit, domain.ErrBadArgument)
	}
	query := `
        SELECT ` + historyColumns + `
        FROM symptom_history WHERE user_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, mapStoreError("list history", err)
	}
	defer rows.Close()

	result := make([]domain.HistoryRecord, 0, limit)
	for rows.Next() {
		record, err := scanHistory(rows)
		if err != nil {
			return nil, mapStoreError("scan history", err)
		}
		result = append(result, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("list history", err)
	}
	return result, nil
}

func (r *historyRepository) GetByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	query := `
        SELECT ` + historyColumns + `
        FROM symptom_history WHERE id=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	record, err := scanHistory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapStoreError("get history", err)
	}
	return record, nil
}

func scanHistory(row pgx.Row) (*domain.HistoryRecord, error) {
	var record domain.HistoryRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.SymptomsText,
		&record.Severity,
		&record.Conditions,
		&record.Recommendations,
		&record.AnalysisNote,
		&record.ImageFilename,
		&record.PDFName,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	record.Normalize()
	return &record, nil
}
