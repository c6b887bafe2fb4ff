package usecases

import (
	"context"

	"github.com/samirrijal/ogcview/internal/core/ports"
)

const endpointKeyPrefix = "ogcview:endpoint:"

// EndpointKey is the store key holding a client's last endpoint.
func EndpointKey(clientID string) string {
	return endpointKeyPrefix + clientID
}

// EndpointPreferences is a ports.EndpointStore for one client on top of a
// KeyValueStore.
type EndpointPreferences struct {
	store ports.KeyValueStore
	key   string
	ttl   int
}

// NewEndpointPreferences scopes store to clientID. ttlSeconds <= 0 keeps
// the value forever.
func NewEndpointPreferences(store ports.KeyValueStore, clientID string, ttlSeconds int) *EndpointPreferences {
	return &EndpointPreferences{store: store, key: EndpointKey(clientID), ttl: ttlSeconds}
}

func (p *EndpointPreferences) GetPersistedEndpoint(ctx context.Context) (string, bool, error) {
	v, ok, err := p.store.Get(ctx, p.key)
	if err != nil || !ok || v == "" {
		return "", false, err
	}
	return v, true, nil
}

func (p *EndpointPreferences) SetPersistedEndpoint(ctx context.Context, endpoint string) error {
	return p.store.Set(ctx, p.key, endpoint, p.ttl)
}

func (p *EndpointPreferences) ForgetEndpoint(ctx context.Context, endpoint string) error {
	v, ok, err := p.store.Get(ctx, p.key)
	if err != nil || !ok || v != endpoint {
		return err
	}
	return p.store.Delete(ctx, p.key)
}
