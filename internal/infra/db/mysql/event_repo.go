package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	domain "github.com/panoramiq/panorex-api/internal/domain/events"
)

type UsageEventRepository struct {
	db *sql.DB
}

func NewUsageEventRepository(db *sql.DB) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Record appends one usage event. Id and timestamp are assigned by the
// database; the caller never reads them back.
func (r *UsageEventRepository) Record(ctx context.Context, e *domain.UsageEvent) error {
	const q = `
INSERT INTO usage_events
  (event_type, session_id, metadata_json, error_message)
VALUES (?,?,?,?);
`
	meta := "{}"
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err == nil {
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

// Recent returns the newest events for the stats view.
func (r *UsageEventRepository) Recent(ctx context.Context, limit int) ([]*domain.UsageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, event_type, session_id, metadata_json, error_message, created_at
FROM usage_events
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UsageEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByType aggregates events per type over the trailing window.
func (r *UsageEventRepository) CountByType(ctx context.Context, sinceDays int) ([]*domain.TypeCount, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	const q = `
SELECT event_type, COUNT(*)
FROM usage_events
WHERE created_at >= NOW() - INTERVAL ? DAY
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

func scanEvent(rows *sql.Rows) (*domain.UsageEvent, error) {
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
	return &e, nil
}
