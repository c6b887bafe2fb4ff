package ports

import (
	"context"

	"github.com/samirrijal/ogcview/internal/core/domain"
)

// FeatureSource talks to an OGC API Features endpoint.
type FeatureSource interface {
	ListCollections(ctx context.Context, endpoint string) ([]domain.Collection, error)
	Load(ctx context.Context, req domain.LoadRequest) (*domain.LoadResult, error)
}

// FeatureDecoder turns one items payload into canonical features.
// Implementations return *domain.DecodeError when the payload has the wrong shape.
type FeatureDecoder interface {
	Format() domain.FetchFormat
	// FormatToken is the value of the f= query parameter, "" for none.
	FormatToken() string
	// Accept is the Accept header to send, "" for default negotiation.
	Accept() string
	Decode(raw []byte) ([]domain.Feature, error)
}

// KeyValueStore is a small string store used for user preferences.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EndpointStore persists the last-used OGC API endpoint of one client.
type EndpointStore interface {
	GetPersistedEndpoint(ctx context.Context) (string, bool, error)
	SetPersistedEndpoint(ctx context.Context, endpoint string) error
	// ForgetEndpoint drops the persisted endpoint if it still equals endpoint.
	ForgetEndpoint(ctx context.Context, endpoint string) error
}
