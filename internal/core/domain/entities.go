package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// FetchFormat selects the wire format of an items request.
type FetchFormat string

const (
	FormatGeoJSON  FetchFormat = "geojson"
	FormatColumnar FetchFormat = "arrow"
)

// ParseFetchFormat maps user input to a format. Unknown values fall back to GeoJSON.
func ParseFetchFormat(s string) FetchFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arrow", "columnar", "geoarrow":
		return FormatColumnar
	default:
		return FormatGeoJSON
	}
}

// DefaultRowLimit caps a single items request.
const DefaultRowLimit = 10000

// Collection is one entry of an OGC API /collections listing.
type Collection struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Feature is the canonical feature produced by every format adapter.
// Geometry is nil when the source carried no geometry for the row.
// RawGeometry holds the geometry object exactly as a GeoJSON source sent
// it, extra ordinates included.
type Feature struct {
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties"`
	Geometry    orb.Geometry    `json:"-"`
	RawGeometry json.RawMessage `json:"-"`
}

// LoadRequest describes one items fetch.
type LoadRequest struct {
	Endpoint     string
	CollectionID string
	BBox         BoundingBox
	Format       FetchFormat
	Limit        int
}

// LoadResult is the outcome of a successful items fetch.
type LoadResult struct {
	Features      []Feature   `json:"features"`
	SourceFormat  FetchFormat `json:"source_format"`
	RequestedBBox BoundingBox `json:"requested_bbox"`
}

// LoadStatus is the loader part of SessionState.
type LoadStatus string

const (
	StatusIdle    LoadStatus = "idle"
	StatusLoading LoadStatus = "loading"
	StatusError   LoadStatus = "error"
)

// Status carries the loader status and, for StatusError, its message.
type Status struct {
	State   LoadStatus `json:"state"`
	Message string     `json:"message,omitempty"`
}

// SessionState is the user-visible state of a viewer session.
type SessionState struct {
	Endpoint     string      `json:"endpoint"`
	CollectionID string      `json:"collection_id,omitempty"`
	Format       FetchFormat `json:"format"`
	Status       Status      `json:"status"`
}

// LoadEvent records a resolved session load for the activity feed.
type LoadEvent struct {
	SessionID    string        `json:"session_id"`
	Endpoint     string        `json:"endpoint"`
	CollectionID string        `json:"collection_id"`
	Format       FetchFormat   `json:"format"`
	BBox         BoundingBox   `json:"bbox"`
	Features     int           `json:"features"`
	Outcome      string        `json:"outcome"` // "ok" | "error"
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	Time         time.Time     `json:"time"`
}
