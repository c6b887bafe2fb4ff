// Package geospatial holds the small amount of spherical math the viewer needs.
// Everything here is an approximation good enough for picking a fetch window;
// it degrades near the poles and does not handle the antimeridian.
package geospatial

import (
	"math"

	"github.com/samirrijal/ogcview/internal/core/domain"
)

const (
	earthRadiusKm = 6371.0

	// groundResolutionEquator is web-mercator meters per pixel at zoom 0 on the equator.
	groundResolutionEquator = 156543.03392

	metersPerDegreeLon = 111320.0
	metersPerDegreeLat = 110540.0
)

// GroundResolution returns meters per pixel at a latitude and zoom level.
func GroundResolution(lat, zoom float64) float64 {
	return groundResolutionEquator * math.Cos(toRad(lat)) / math.Pow(2, zoom)
}

// ComputeBounds returns the box covered by a viewport of widthPx x heightPx
// centered on the view. It never fails; extreme zoom or latitude yield
// degenerate boxes.
func ComputeBounds(view domain.ViewState, widthPx, heightPx int) domain.BoundingBox {
	mpp := GroundResolution(view.Latitude, view.Zoom)

	halfWidthM := float64(widthPx) * mpp / 2
	halfHeightM := float64(heightPx) * mpp / 2

	deltaLon := halfWidthM / metersPerDegreeLon
	deltaLat := halfHeightM / metersPerDegreeLat

	return domain.BoundingBox{
		West:  view.Longitude - deltaLon,
		South: view.Latitude - deltaLat,
		East:  view.Longitude + deltaLon,
		North: view.Latitude + deltaLat,
	}
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000
}

// Diagonal is the south-west to north-east distance of a box in meters.
func Diagonal(b domain.BoundingBox) float64 {
	return Haversine(b.South, b.West, b.North, b.East)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
