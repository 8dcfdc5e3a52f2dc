package events

import "context"

// Recorder defines persistence for usage events
type Recorder interface {
	Record(ctx context.Context, e *UsageEvent) error
	Recent(ctx context.Context, limit int) ([]*UsageEvent, error)
	CountByType(ctx context.Context, sinceDays int) ([]*TypeCount, error)
}
