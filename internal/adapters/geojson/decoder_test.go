package geojsonadapter

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"github.com/samirrijal/ogcview/internal/core/domain"
)

const threeFeatures = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 1, "geometry": {"type": "Point", "coordinates": [-2.935, 43.263]}, "properties": {"name": "Abando", "rank": 1}},
    {"type": "Feature", "id": "b", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1], [2, 1]]}, "properties": {"name": "Line"}},
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}}
  ]
}`

func TestDecode_PreservesOrderAndGeometry(t *testing.T) {
	features, err := New().Decode([]byte(threeFeatures))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(features))
	}

	p, ok := features[0].Geometry.(orb.Point)
	if !ok {
		t.Fatalf("expected orb.Point, got %T", features[0].Geometry)
	}
	if p != (orb.Point{-2.935, 43.263}) {
		t.Errorf("point changed: %v", p)
	}
	if features[0].Properties["name"] != "Abando" {
		t.Errorf("expected name Abando, got %v", features[0].Properties["name"])
	}

	ls, ok := features[1].Geometry.(orb.LineString)
	if !ok || len(ls) != 3 || ls[2] != (orb.Point{2, 1}) {
		t.Errorf("unexpected line string: %#v", features[1].Geometry)
	}
	if features[1].ID != "b" {
		t.Errorf("expected id b, got %v", features[1].ID)
	}

	if _, ok := features[2].Geometry.(orb.Polygon); !ok {
		t.Errorf("expected orb.Polygon, got %T", features[2].Geometry)
	}
}

func TestDecode_AbsentPropertiesBecomeEmpty(t *testing.T) {
	features, err := New().Decode([]byte(threeFeatures))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if features[2].Properties == nil {
		t.Fatal("expected empty properties map, got nil")
	}
	if len(features[2].Properties) != 0 {
		t.Errorf("expected no properties, got %v", features[2].Properties)
	}
}

func TestDecode_NullGeometryIsSurfaced(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{"a":1}}]}`
	features, err := New().Decode([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("expected the feature to be kept, got %d", len(features))
	}
	if features[0].Geometry != nil {
		t.Errorf("expected nil geometry, got %v", features[0].Geometry)
	}
}

func TestDecode_Idempotent(t *testing.T) {
	d := New()
	a, err := d.Decode([]byte(threeFeatures))
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Decode([]byte(threeFeatures))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("decoding the same payload twice gave different results")
	}
}

func TestDecode_EmptyCollection(t *testing.T) {
	features, err := New().Decode([]byte(`{"type":"FeatureCollection","features":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 0 {
		t.Errorf("expected no features, got %d", len(features))
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "<html>oops</html>"},
		{"array", `[1,2,3]`},
		{"single feature", `{"type":"Feature","geometry":null,"properties":{}}`},
		{"truncated", `{"type":"FeatureCollection","features":[{"type":"Feat`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Decode([]byte(tt.raw))
			var decErr *domain.DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if decErr.Format != domain.FormatGeoJSON {
				t.Errorf("expected format geojson, got %s", decErr.Format)
			}
		})
	}
}

func TestToFeatureCollection(t *testing.T) {
	features := []domain.Feature{
		{ID: "x", Properties: map[string]any{"name": "a"}, Geometry: orb.Point{1, 2}},
		{Properties: nil, Geometry: nil},
	}

	data, err := json.Marshal(ToFeatureCollection(features))
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry   json.RawMessage `json:"geometry"`
			Properties map[string]any  `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Type != "FeatureCollection" || len(out.Features) != 2 {
		t.Fatalf("unexpected output: %s", data)
	}
	if string(out.Features[1].Geometry) != "null" {
		t.Errorf("expected null geometry, got %s", out.Features[1].Geometry)
	}
	if out.Features[0].Properties["name"] != "a" {
		t.Errorf("expected name a, got %v", out.Features[0].Properties)
	}
}

func TestDecode_KeepsThirdOrdinate(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":1,"geometry":{"type":"Point","coordinates":[1.5,2.5,100]},"properties":{}},
	  {"type":"Feature","id":2,"geometry":{"type":"LineString","coordinates":[[0,0,5],[1,1,6]]},"properties":{}},
	  {"type":"Feature","id":3,"geometry":null,"properties":{}}
	]}`

	features, err := New().Decode([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if features[2].RawGeometry != nil {
		t.Errorf("expected no raw geometry for null, got %s", features[2].RawGeometry)
	}

	data, err := json.Marshal(ToFeatureCollection(features))
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"Point", `[1.5,2.5,100]`},
		{"LineString", `[[0,0,5],[1,1,6]]`},
	}
	for i, tt := range tests {
		got := out.Features[i].Geometry
		if got.Type != tt.name || string(got.Coordinates) != tt.want {
			t.Errorf("feature %d: expected %s %s, got %s %s", i, tt.name, tt.want, got.Type, got.Coordinates)
		}
	}
}
