package geojsonadapter

import (
	"bytes"
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/ogcview/internal/core/domain"
)

// Decoder implements ports.FeatureDecoder for GeoJSON FeatureCollections.
type Decoder struct{}

// New creates a GeoJSON decoder.
func New() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Format() domain.FetchFormat { return domain.FormatGeoJSON }

// FormatToken is empty: GeoJSON is the default representation of /items.
func (d *Decoder) FormatToken() string { return "" }

// Accept is empty: the request relies on default content negotiation.
func (d *Decoder) Accept() string { return "" }

// Decode parses a FeatureCollection, keeping feature order, properties and geometry as sent.
func (d *Decoder) Decode(raw []byte) ([]domain.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, &domain.DecodeError{Format: domain.FormatGeoJSON, Reason: err.Error(), Err: err}
	}
	if fc.Type != "FeatureCollection" {
		return nil, &domain.DecodeError{Format: domain.FormatGeoJSON, Reason: "not a FeatureCollection: " + fc.Type}
	}

	// orb points are 2D, so the geometry objects are also kept as sent.
	var rawFC struct {
		Features []struct {
			Geometry json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &rawFC); err != nil || len(rawFC.Features) != len(fc.Features) {
		return nil, &domain.DecodeError{Format: domain.FormatGeoJSON, Reason: "inconsistent features array", Err: err}
	}

	features := make([]domain.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		props := map[string]any(f.Properties)
		if props == nil {
			props = map[string]any{}
		}
		feat := domain.Feature{
			ID:         f.ID,
			Properties: props,
			Geometry:   f.Geometry,
		}
		if g := rawFC.Features[i].Geometry; len(g) > 0 && !bytes.Equal(g, nullJSON) {
			feat.RawGeometry = g
		}
		features = append(features, feat)
	}
	return features, nil
}

// FeatureCollection is the GeoJSON document sent to viewers.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature whose geometry is null when absent.
type Feature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

var nullJSON = []byte("null")

// ToFeatureCollection renders canonical features as GeoJSON for clients.
func ToFeatureCollection(features []domain.Feature) *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(features))}
	for _, f := range features {
		out := Feature{Type: "Feature", ID: f.ID, Properties: f.Properties}
		if out.Properties == nil {
			out.Properties = map[string]any{}
		}
		out.Geometry = geometryJSON(f)
		fc.Features = append(fc.Features, out)
	}
	return fc
}

// geometryJSON prefers the geometry as received and falls back to encoding
// the decoded one. Nil means null.
func geometryJSON(f domain.Feature) json.RawMessage {
	if len(f.RawGeometry) > 0 {
		return f.RawGeometry
	}
	if f.Geometry == nil {
		return nil
	}
	data, err := json.Marshal(geojson.NewGeometry(f.Geometry))
	if err != nil {
		return nil
	}
	return data
}
