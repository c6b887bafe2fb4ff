package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/ogcview/internal/adapters/memory"
	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
	"github.com/samirrijal/ogcview/internal/pkg/geospatial"
)

func TestCatalogService_ItemsFromView(t *testing.T) {
	src := newMockSource()
	svc := usecases.NewCatalogService(src, "https://default.example.com", 500)

	view := domain.ViewState{Longitude: -2.93, Latitude: 43.26, Zoom: 10}
	res, err := svc.Items(context.Background(), usecases.ItemsQuery{
		CollectionID: "parks",
		View:         view,
		Width:        800,
		Height:       600,
		Limit:        100000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := <-src.requests
	if req.Endpoint != "https://default.example.com" {
		t.Errorf("expected default endpoint, got %q", req.Endpoint)
	}
	if req.Limit != 500 {
		t.Errorf("expected limit clamped to 500, got %d", req.Limit)
	}
	if req.Format != domain.FormatGeoJSON {
		t.Errorf("expected geojson by default, got %s", req.Format)
	}
	if want := geospatial.ComputeBounds(view, 800, 600); req.BBox != want || res.RequestedBBox != want {
		t.Errorf("expected bbox %v, got %v", want, req.BBox)
	}
}

func TestCatalogService_InvalidQueries(t *testing.T) {
	empty := domain.BoundingBox{West: 1, South: 1, East: 1, North: 2}
	tests := []struct {
		name string
		svc  *usecases.CatalogService
		q    usecases.ItemsQuery
	}{
		{"no endpoint", usecases.NewCatalogService(newMockSource(), "", 0), usecases.ItemsQuery{CollectionID: "parks", Width: 1, Height: 1}},
		{"no collection", usecases.NewCatalogService(newMockSource(), "http://x", 0), usecases.ItemsQuery{Width: 1, Height: 1}},
		{"no viewport", usecases.NewCatalogService(newMockSource(), "http://x", 0), usecases.ItemsQuery{CollectionID: "parks"}},
		{"empty bbox", usecases.NewCatalogService(newMockSource(), "http://x", 0), usecases.ItemsQuery{CollectionID: "parks", BBox: &empty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Items(context.Background(), tt.q)
			if !errors.Is(err, usecases.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestEndpointPreferences_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	prefs := usecases.NewEndpointPreferences(store, "client-1", 0)

	if _, ok, err := prefs.GetPersistedEndpoint(ctx); ok || err != nil {
		t.Fatalf("expected nothing persisted, got ok=%v err=%v", ok, err)
	}
	if err := prefs.SetPersistedEndpoint(ctx, "https://demo.pygeoapi.io/master"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok, _ := prefs.GetPersistedEndpoint(ctx)
	if !ok || got != "https://demo.pygeoapi.io/master" {
		t.Errorf("unexpected persisted endpoint %q ok=%v", got, ok)
	}

	raw, _, _ := store.Get(ctx, usecases.EndpointKey("client-1"))
	if raw != got {
		t.Errorf("expected value under client key, got %q", raw)
	}
	other := usecases.NewEndpointPreferences(store, "client-2", 0)
	if _, ok, _ := other.GetPersistedEndpoint(ctx); ok {
		t.Error("preferences must be scoped per client")
	}
}

func TestEndpointPreferences_ForgetOnlyMatching(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	prefs := usecases.NewEndpointPreferences(store, "client-1", 0)
	_ = prefs.SetPersistedEndpoint(ctx, "https://b.example/ogc")

	if err := prefs.ForgetEndpoint(ctx, "https://a.example/ogc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok, _ := prefs.GetPersistedEndpoint(ctx); !ok || got != "https://b.example/ogc" {
		t.Fatalf("a newer endpoint must survive, got %q ok=%v", got, ok)
	}

	if err := prefs.ForgetEndpoint(ctx, "https://b.example/ogc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := prefs.GetPersistedEndpoint(ctx); ok {
		t.Error("expected the endpoint to be forgotten")
	}
	if _, ok, _ := store.Get(ctx, usecases.EndpointKey("client-1")); ok {
		t.Error("expected the key to be deleted")
	}
}

func TestActivityLog_RingOrder(t *testing.T) {
	log := usecases.NewActivityLog(3)
	for i := 1; i <= 5; i++ {
		_ = log.PublishLoadEvent(context.Background(), &domain.LoadEvent{Features: i})
	}
	if log.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", log.Len())
	}
	got := log.Recent(0)
	if len(got) != 3 || got[0].Features != 5 || got[2].Features != 3 {
		t.Errorf("expected newest first 5,4,3, got %+v", got)
	}
	if two := log.Recent(2); len(two) != 2 || two[1].Features != 4 {
		t.Errorf("unexpected limited result %+v", two)
	}
}

type mockSubscriber struct {
	handler func(ctx context.Context, e *domain.LoadEvent) error
}

func (m *mockSubscriber) SubscribeLoadEvents(ctx context.Context, h func(ctx context.Context, e *domain.LoadEvent) error) error {
	m.handler = h
	return nil
}

func TestActivityLog_FollowsSubscriber(t *testing.T) {
	log := usecases.NewActivityLog(10)
	sub := &mockSubscriber{}
	if err := log.Follow(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = sub.handler(context.Background(), &domain.LoadEvent{CollectionID: "parks", Outcome: "ok"})
	if got := log.Recent(1); len(got) != 1 || got[0].CollectionID != "parks" {
		t.Errorf("expected event delivered through subscriber, got %+v", got)
	}
}
