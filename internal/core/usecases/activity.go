package usecases

import (
	"context"
	"sync"

	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/ports"
)

// DefaultActivitySize is the number of load events kept by an ActivityLog.
const DefaultActivitySize = 200

// ActivityLog keeps the most recent load events in a ring buffer.
// It also satisfies ports.EventPublisher so sessions can feed it directly
// when no broker is configured.
type ActivityLog struct {
	mu    sync.RWMutex
	buf   []domain.LoadEvent
	next  int
	count int
}

// NewActivityLog returns a log holding up to size events.
func NewActivityLog(size int) *ActivityLog {
	if size <= 0 {
		size = DefaultActivitySize
	}
	return &ActivityLog{buf: make([]domain.LoadEvent, size)}
}

// Record appends an event, evicting the oldest when full.
func (a *ActivityLog) Record(_ context.Context, event *domain.LoadEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf[a.next] = *event
	a.next = (a.next + 1) % len(a.buf)
	if a.count < len(a.buf) {
		a.count++
	}
	return nil
}

// PublishLoadEvent records the event locally.
func (a *ActivityLog) PublishLoadEvent(ctx context.Context, event *domain.LoadEvent) error {
	return a.Record(ctx, event)
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (a *ActivityLog) Recent(limit int) []domain.LoadEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := a.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.LoadEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (a.next - i + len(a.buf)) % len(a.buf)
		out = append(out, a.buf[idx])
	}
	return out
}

// Len returns the number of stored events.
func (a *ActivityLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Follow feeds the log from a broker subscription.
func (a *ActivityLog) Follow(ctx context.Context, sub ports.EventSubscriber) error {
	return sub.SubscribeLoadEvents(ctx, a.Record)
}
