package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/ogcview/internal/core/ports"
	"github.com/samirrijal/ogcview/internal/core/usecases"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Catalog  *usecases.CatalogService
	Source   ports.FeatureSource
	Activity *usecases.ActivityLog
	// Events receives the load events of viewer sessions. When nil the
	// sessions record into Activity directly.
	Events ports.EventPublisher
	// Store persists the last endpoint of each client.
	Store       ports.KeyValueStore
	EndpointTTL int
	// SessionDefaults is the template of every viewer session.
	SessionDefaults usecases.SessionConfig
	NATS            *nats.Conn
	// Readiness lists the checks of /v1/ready by name.
	Readiness map[string]Pinger
	// OpenAPIPath overrides DefaultOpenAPIPath.
	OpenAPIPath string
}

func (d *Dependencies) eventSink() ports.EventPublisher {
	if d.Events != nil {
		return d.Events
	}
	if d.Activity != nil {
		return d.Activity
	}
	return nil
}
