package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/ports"
	"github.com/samirrijal/ogcview/internal/pkg/geospatial"
)

// ItemsQuery is a one-shot items request. Either BBox is set or it is
// derived from View and the viewport size.
type ItemsQuery struct {
	Endpoint     string
	CollectionID string
	BBox         *domain.BoundingBox
	View         domain.ViewState
	Width        int
	Height       int
	Format       domain.FetchFormat
	Limit        int
}

// CatalogService runs stateless collection and items requests.
type CatalogService struct {
	source          ports.FeatureSource
	defaultEndpoint string
	rowLimit        int
}

// NewCatalogService creates a CatalogService. defaultEndpoint is used
// when a request names none.
func NewCatalogService(source ports.FeatureSource, defaultEndpoint string, rowLimit int) *CatalogService {
	if rowLimit <= 0 {
		rowLimit = domain.DefaultRowLimit
	}
	return &CatalogService{source: source, defaultEndpoint: strings.TrimSpace(defaultEndpoint), rowLimit: rowLimit}
}

// ListCollections lists the collections of endpoint.
func (s *CatalogService) ListCollections(ctx context.Context, endpoint string) ([]domain.Collection, error) {
	ep, err := s.endpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return s.source.ListCollections(ctx, ep)
}

// Bounds is the bounding box visible from view in a width x height viewport.
func (s *CatalogService) Bounds(view domain.ViewState, width, height int) domain.BoundingBox {
	return geospatial.ComputeBounds(view, width, height)
}

// Items loads one collection for the query's bbox.
func (s *CatalogService) Items(ctx context.Context, q ItemsQuery) (*domain.LoadResult, error) {
	ep, err := s.endpoint(q.Endpoint)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.CollectionID) == "" {
		return nil, fmt.Errorf("%w: collection id is required", ErrInvalidQuery)
	}

	var bbox domain.BoundingBox
	if q.BBox != nil {
		bbox = *q.BBox
	} else {
		if q.Width <= 0 || q.Height <= 0 {
			return nil, fmt.Errorf("%w: width and height must be positive", ErrInvalidQuery)
		}
		bbox = geospatial.ComputeBounds(q.View, q.Width, q.Height)
	}
	if !bbox.Valid() {
		return nil, fmt.Errorf("%w: bbox %s is empty", ErrInvalidQuery, bbox)
	}

	limit := q.Limit
	if limit <= 0 || limit > s.rowLimit {
		limit = s.rowLimit
	}
	format := q.Format
	if format == "" {
		format = domain.FormatGeoJSON
	}

	return s.source.Load(ctx, domain.LoadRequest{
		Endpoint:     ep,
		CollectionID: q.CollectionID,
		BBox:         bbox,
		Format:       format,
		Limit:        limit,
	})
}

func (s *CatalogService) endpoint(endpoint string) (string, error) {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = s.defaultEndpoint
	}
	if ep == "" {
		return "", fmt.Errorf("%w: endpoint is required", ErrInvalidQuery)
	}
	return ep, nil
}
