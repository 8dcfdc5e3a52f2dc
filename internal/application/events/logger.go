package events

import (
	"context"
	"log"
	"sync"
	"time"

	domain "github.com/panoramiq/panorex-api/internal/domain/events"
)

// Logger writes usage events best-effort and fire-and-forget. Recorder
// failures are logged and swallowed; nothing here may interrupt the
// pipeline. Writes are unordered relative to each other.
type Logger struct {
	recorder domain.Recorder
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewLogger(recorder domain.Recorder) *Logger {
	return &Logger{recorder: recorder, timeout: 5 * time.Second}
}

// Log records one pipeline event. Returns immediately; the write runs
// in the background detached from the caller's context.
func (l *Logger) Log(sessionID string, t domain.Type, metadata map[string]any, errorMessage string) {
	if l == nil || l.recorder == nil {
		return
	}
	e := &domain.UsageEvent{
		EventType:    t,
		SessionID:    sessionID,
		Metadata:     metadata,
		ErrorMessage: errorMessage,
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := l.recorder.Record(ctx, e); err != nil {
			log.Printf("usage log write failed: type=%s session=%s err=%v", t, sessionID, err)
		}
	}()
}

// Flush waits for in-flight writes; used at shutdown and in tests.
func (l *Logger) Flush() {
	l.wg.Wait()
}
