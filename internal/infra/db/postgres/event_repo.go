package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	domain "github.com/panoramiq/panorex-api/internal/domain/events"
)

type UsageEventRepository struct {
	db *sql.DB
}

func NewUsageEventRepository(db *sql.DB) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Record appends one usage event; id and timestamp come from the server
func (r *UsageEventRepository) Record(ctx context.Context, e *domain.UsageEvent) error {
	const q = `
INSERT INTO usage_events
  (event_type, session_id, metadata_json, error_message)
VALUES ($1,$2,$3,$4);
`
	meta := "{}"
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = string(b)
		}
	}
	_, err := r.db.ExecContext(ctx, q,
		string(e.EventType),
		dashIfEmpty(e.SessionID),
		meta,
		e.ErrorMessage,
	)
	return err
}

func (r *UsageEventRepository) Recent(ctx context.Context, limit int) ([]*domain.UsageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, event_type, session_id, metadata_json, error_message, created_at
FROM usage_events
ORDER BY created_at DESC, id DESC
LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UsageEvent
	for rows.Next() {
		var e domain.UsageEvent
		var et, meta string
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &et, &e.SessionID, &meta, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = domain.Type(et)
		e.ErrorMessage = errMsg.String
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &e.Metadata)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *UsageEventRepository) CountByType(ctx context.Context, sinceDays int) ([]*domain.TypeCount, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	const q = `
SELECT event_type, COUNT(*)
FROM usage_events
WHERE created_at >= NOW() - make_interval(days => $1)
GROUP BY event_type
ORDER BY COUNT(*) DESC;
`
	rows, err := r.db.QueryContext(ctx, q, sinceDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TypeCount
	for rows.Next() {
		var tc domain.TypeCount
		var et string
		if err := rows.Scan(&et, &tc.Count); err != nil {
			return nil, err
		}
		tc.EventType = domain.Type(et)
		out = append(out, &tc)
	}
	return out, rows.Err()
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
