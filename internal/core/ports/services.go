package ports

import (
	"context"

	"github.com/samirrijal/ogcview/internal/core/domain"
)

// RenderSink is the map renderer of one viewer.
type RenderSink interface {
	SetFeatures(result *domain.LoadResult)
	SetViewState(view domain.ViewState)
}

// SessionView receives the UI-facing notifications of a viewer session.
// Calls are made in state order while the session holds its lock, so
// implementations must not call back into the session.
type SessionView interface {
	RenderSink
	ShowCollections(collections []domain.Collection, enabled bool)
	ShowStatus(state domain.SessionState)
}

// EventPublisher publishes load events to a message broker.
type EventPublisher interface {
	PublishLoadEvent(ctx context.Context, event *domain.LoadEvent) error
}

// EventSubscriber subscribes to load events from a message broker.
type EventSubscriber interface {
	SubscribeLoadEvents(ctx context.Context, handler func(ctx context.Context, event *domain.LoadEvent) error) error
}
