package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/panoramiq/panorex-api/internal/domain/session"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts or updates an archived report
func (r *ReportRepository) Save(ctx context.Context, rec *domain.ReportRecord) error {
	const q = `
INSERT INTO analysis_reports
  (id, session_id, image_key, report_html, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  session_id=EXCLUDED.session_id,
  image_key=EXCLUDED.image_key,
  report_html=EXCLUDED.report_html;
`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		dashIfEmpty(rec.SessionID),
		rec.ImageKey,
		rec.Report,
		createdAt,
	)
	return err
}

// Paginate returns a page of archived reports ordered by created_at desc
func (r *ReportRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.ReportRecord, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, session_id, image_key, report_html, created_at
FROM analysis_reports
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReportRecord
	for rows.Next() {
		var rec domain.ReportRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ImageKey, &rec.Report, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
