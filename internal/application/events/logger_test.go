package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/panoramiq/panorex-api/internal/domain/events"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []*domain.UsageEvent
	fail   bool
}

func (c *captureRecorder) Record(_ context.Context, e *domain.UsageEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("store unavailable")
	}
	c.events = append(c.events, e)
	return nil
}

func (c *captureRecorder) Recent(context.Context, int) ([]*domain.UsageEvent, error) {
	return nil, nil
}

func (c *captureRecorder) CountByType(context.Context, int) ([]*domain.TypeCount, error) {
	return nil, nil
}

func TestLog_RecordsEvent(t *testing.T) {
	rec := &captureRecorder{}
	l := NewLogger(rec)

	l.Log("sess-1", domain.TypeAnalysisStart, map[string]any{"size": 1234}, "")
	l.Flush()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 1)
	assert.Equal(t, domain.TypeAnalysisStart, rec.events[0].EventType)
	assert.Equal(t, "sess-1", rec.events[0].SessionID)
}

func TestLog_SwallowsRecorderFailure(t *testing.T) {
	rec := &captureRecorder{fail: true}
	l := NewLogger(rec)

	assert.NotPanics(t, func() {
		l.Log("sess-1", domain.TypeAnalysisError, nil, "remote exploded")
		l.Flush()
	})
}

func TestLog_NilRecorderIsNoop(t *testing.T) {
	l := NewLogger(nil)
	assert.NotPanics(t, func() {
		l.Log("sess-1", domain.TypeUpload, nil, "")
		l.Flush()
	})
}
