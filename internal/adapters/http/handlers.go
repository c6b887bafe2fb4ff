package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	geojsonadapter "github.com/samirrijal/ogcview/internal/adapters/geojson"
	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
	"github.com/samirrijal/ogcview/internal/pkg/geospatial"
)

// ItemsResponse is a GeoJSON FeatureCollection with the request metadata.
type ItemsResponse struct {
	Type           string                   `json:"type"`
	Features       []geojsonadapter.Feature `json:"features"`
	NumberReturned int                      `json:"numberReturned"`
	BBox           [4]float64               `json:"bbox"`
	Format         domain.FetchFormat       `json:"format"`
}

// BoundsResponse is the box visible from a view.
type BoundsResponse struct {
	domain.BoundingBox
	BBox string `json:"bbox"`
	// DiagonalMeters is the great-circle length of the box diagonal.
	DiagonalMeters float64 `json:"diagonal_m"`
}

func newItemsResponse(res *domain.LoadResult) ItemsResponse {
	fc := geojsonadapter.ToFeatureCollection(res.Features)
	b := res.RequestedBBox
	return ItemsResponse{
		Type:           fc.Type,
		Features:       fc.Features,
		NumberReturned: len(fc.Features),
		BBox:           [4]float64{b.West, b.South, b.East, b.North},
		Format:         res.SourceFormat,
	}
}

// ListCollectionsHandler lists the collections of ?endpoint= with
// offset/limit pagination.
func ListCollectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cols, err := deps.Catalog.ListCollections(c.UserContext(), c.Query("endpoint"))
		if err != nil {
			return errFromLoad(c, err)
		}

		offset, limit := parsePagination(c, 100, 500)
		total := len(cols)
		start, end := paginate(total, offset, limit)
		page := cols[start:end]
		if page == nil {
			page = []domain.Collection{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// ItemsHandler runs one load of collection :id. The box comes from
// ?bbox=w,s,e,n or from ?lon&lat&zoom&width&height.
func ItemsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := usecases.ItemsQuery{
			Endpoint:     c.Query("endpoint"),
			CollectionID: c.Params("id"),
			Format:       domain.ParseFetchFormat(c.Query("format")),
			Limit:        c.QueryInt("limit", 0),
		}

		if raw := c.Query("bbox"); raw != "" {
			bbox, err := domain.ParseBoundingBox(raw)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			q.BBox = &bbox
		} else {
			view, w, h, err := parseViewport(c)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			q.View, q.Width, q.Height = view, w, h
		}

		res, err := deps.Catalog.Items(c.UserContext(), q)
		if err != nil {
			return errFromLoad(c, err)
		}

		body, err := json.Marshal(newItemsResponse(res))
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(body)
	}
}

// BoundsHandler exposes the bounds calculation.
func BoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, w, h, err := parseViewport(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		b := deps.Catalog.Bounds(view, w, h)
		return c.JSON(BoundsResponse{
			BoundingBox:    b,
			BBox:           b.String(),
			DiagonalMeters: math.Round(geospatial.Diagonal(b)),
		})
	}
}

// ActivityHandler returns the most recent load events, newest first.
func ActivityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Activity == nil {
			return c.JSON(fiber.Map{"data": []domain.LoadEvent{}})
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > usecases.DefaultActivitySize {
			limit = 50
		}
		return c.JSON(fiber.Map{"data": deps.Activity.Recent(limit)})
	}
}

// parseViewport reads lon, lat, zoom, width and height.
func parseViewport(c *fiber.Ctx) (domain.ViewState, int, int, error) {
	var view domain.ViewState
	var missing []string

	floats := []struct {
		name string
		dst  *float64
	}{
		{"lon", &view.Longitude},
		{"lat", &view.Latitude},
		{"zoom", &view.Zoom},
	}
	for _, f := range floats {
		raw := c.Query(f.name)
		if raw == "" {
			missing = append(missing, f.name)
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return view, 0, 0, fmt.Errorf("%s: invalid number %q", f.name, raw)
		}
		*f.dst = v
	}

	w, h := c.QueryInt("width", 0), c.QueryInt("height", 0)
	if w <= 0 {
		missing = append(missing, "width")
	}
	if h <= 0 {
		missing = append(missing, "height")
	}
	if len(missing) > 0 {
		return view, 0, 0, fmt.Errorf("missing or invalid parameters: %s", strings.Join(missing, ", "))
	}

	if view.Longitude < -180 || view.Longitude > 180 {
		return view, 0, 0, fmt.Errorf("lon must be within [-180, 180]")
	}
	if view.Latitude < -90 || view.Latitude > 90 {
		return view, 0, 0, fmt.Errorf("lat must be within [-90, 90]")
	}
	if view.Zoom < 0 {
		return view, 0, 0, fmt.Errorf("zoom must be >= 0")
	}
	return view, w, h, nil
}
