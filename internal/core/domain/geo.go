package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ViewState is the camera of the map viewer (WGS 84, web-mercator zoom).
type ViewState struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
}

// BoundingBox is an axis-aligned box in geographic degrees.
// Boxes crossing the antimeridian are not represented.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// String formats the box as the OGC API bbox parameter: west,south,east,north.
func (b BoundingBox) String() string {
	parts := []string{
		strconv.FormatFloat(b.West, 'f', -1, 64),
		strconv.FormatFloat(b.South, 'f', -1, 64),
		strconv.FormatFloat(b.East, 'f', -1, 64),
		strconv.FormatFloat(b.North, 'f', -1, 64),
	}
	return strings.Join(parts, ",")
}

// Valid reports whether west<east and south<north.
func (b BoundingBox) Valid() bool {
	return b.West < b.East && b.South < b.North
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// ParseBoundingBox parses "west,south,east,north".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox must have 4 values, got %d", len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("bbox value %d: %w", i, err)
		}
		v[i] = f
	}

	b := BoundingBox{West: v[0], South: v[1], East: v[2], North: v[3]}
	if !b.Valid() {
		return BoundingBox{}, fmt.Errorf("bbox must satisfy west<east and south<north")
	}
	return b, nil
}
