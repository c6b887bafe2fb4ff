// Package arrowadapter decodes Arrow IPC stream payloads into canonical features.
//
// Geometry rule: the geometry column is the first field tagged geoarrow.wkb
// (as an extension type or through ARROW:extension:name metadata), otherwise a
// binary column with the configured name. Its values are WKB. All other
// columns become properties keyed by column name.
package arrowadapter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/samirrijal/ogcview/internal/core/domain"
)

const (
	// MediaType is the Accept header for Arrow IPC streams.
	MediaType = "application/vnd.apache.arrow.stream"

	// FormatToken is the OGC API f= value selecting Arrow output.
	FormatToken = "arrow"

	extensionNameKey = "ARROW:extension:name"
	geoArrowWKB      = "geoarrow.wkb"
)

// Options controls geometry handling.
type Options struct {
	// DecodeGeometry turns WKB decoding on. When off every feature has a nil
	// geometry, even if the table carries one.
	DecodeGeometry bool
	// GeometryColumn names the binary column holding WKB when no field is
	// tagged geoarrow.wkb.
	GeometryColumn string
}

// DefaultOptions decodes WKB from a column named "geometry".
func DefaultOptions() Options {
	return Options{DecodeGeometry: true, GeometryColumn: "geometry"}
}

// Decoder implements ports.FeatureDecoder for Arrow IPC streams.
type Decoder struct {
	opts  Options
	alloc memory.Allocator
}

// New creates an Arrow decoder.
func New(opts Options) *Decoder {
	return &Decoder{opts: opts, alloc: memory.NewGoAllocator()}
}

func (d *Decoder) Format() domain.FetchFormat { return domain.FormatColumnar }
func (d *Decoder) FormatToken() string        { return FormatToken }
func (d *Decoder) Accept() string             { return MediaType }

// Decode reads every record batch of the stream, one feature per row, in order.
func (d *Decoder) Decode(raw []byte) ([]domain.Feature, error) {
	rdr, err := ipc.NewReader(bytes.NewReader(raw), ipc.WithAllocator(d.alloc))
	if err != nil {
		return nil, decodeError("open ipc stream", err)
	}
	defer rdr.Release()

	geomIdx := geometryColumn(rdr.Schema(), d.opts.GeometryColumn)

	features := []domain.Feature{}
	for rdr.Next() {
		batch, err := d.decodeRecord(rdr.Record(), geomIdx)
		if err != nil {
			return nil, err
		}
		features = append(features, batch...)
	}
	if err := rdr.Err(); err != nil {
		return nil, decodeError("read record batch", err)
	}

	return features, nil
}

func (d *Decoder) decodeRecord(rec arrow.Record, geomIdx int) ([]domain.Feature, error) {
	schema := rec.Schema()
	rows := int(rec.NumRows())
	cols := int(rec.NumCols())

	out := make([]domain.Feature, rows)
	for i := range out {
		out[i].Properties = make(map[string]any, cols)
	}

	for c := 0; c < cols; c++ {
		col := rec.Column(c)

		if c == geomIdx {
			if !d.opts.DecodeGeometry {
				continue
			}
			for r := 0; r < rows; r++ {
				g, err := decodeGeometry(col, r)
				if err != nil {
					return nil, &domain.DecodeError{
						Format: domain.FormatColumnar,
						Reason: fmt.Sprintf("row %d geometry: %v", r, err),
						Err:    err,
					}
				}
				out[r].Geometry = g
			}
			continue
		}

		name := schema.Field(c).Name
		for r := 0; r < rows; r++ {
			out[r].Properties[name] = value(col, r)
		}
	}

	return out, nil
}

// geometryColumn returns the index of the geometry column, -1 for none.
func geometryColumn(schema *arrow.Schema, name string) int {
	fields := schema.Fields()
	for i, f := range fields {
		if isGeoArrowWKB(f) {
			return i
		}
	}
	if name == "" {
		return -1
	}
	for i, f := range fields {
		if f.Name == name && isBinary(f.Type) {
			return i
		}
	}
	return -1
}

func isGeoArrowWKB(f arrow.Field) bool {
	if ext, ok := f.Type.(arrow.ExtensionType); ok && ext.ExtensionName() == geoArrowWKB {
		return true
	}
	if idx := f.Metadata.FindKey(extensionNameKey); idx >= 0 {
		return f.Metadata.Values()[idx] == geoArrowWKB && isBinary(f.Type)
	}
	return false
}

func isBinary(dt arrow.DataType) bool {
	if ext, ok := dt.(arrow.ExtensionType); ok {
		dt = ext.StorageType()
	}
	switch dt.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY:
		return true
	}
	return false
}

func decodeGeometry(col arrow.Array, r int) (orb.Geometry, error) {
	if ext, ok := col.(array.ExtensionArray); ok {
		col = ext.Storage()
	}
	if col.IsNull(r) {
		return nil, nil
	}

	var b []byte
	switch a := col.(type) {
	case *array.Binary:
		b = a.Value(r)
	case *array.LargeBinary:
		b = a.Value(r)
	default:
		return nil, fmt.Errorf("unsupported geometry column type %s", col.DataType())
	}
	if len(b) == 0 {
		return nil, nil
	}
	return wkb.Unmarshal(b)
}

// value extracts one cell as a Go scalar. Buffers are copied since record
// memory is released once the reader advances.
func value(col arrow.Array, r int) any {
	if col.IsNull(r) {
		return nil
	}

	switch a := col.(type) {
	case *array.String:
		return strings.Clone(a.Value(r))
	case *array.LargeString:
		return strings.Clone(a.Value(r))
	case *array.Binary:
		return bytes.Clone(a.Value(r))
	case *array.LargeBinary:
		return bytes.Clone(a.Value(r))
	case *array.Boolean:
		return a.Value(r)
	case *array.Int8:
		return int64(a.Value(r))
	case *array.Int16:
		return int64(a.Value(r))
	case *array.Int32:
		return int64(a.Value(r))
	case *array.Int64:
		return a.Value(r)
	case *array.Uint8:
		return uint64(a.Value(r))
	case *array.Uint16:
		return uint64(a.Value(r))
	case *array.Uint32:
		return uint64(a.Value(r))
	case *array.Uint64:
		return a.Value(r)
	case *array.Float32:
		return float64(a.Value(r))
	case *array.Float64:
		return a.Value(r)
	default:
		return col.GetOneForMarshal(r)
	}
}

func decodeError(reason string, err error) error {
	return &domain.DecodeError{
		Format: domain.FormatColumnar,
		Reason: fmt.Sprintf("%s: %v", reason, err),
		Err:    err,
	}
}
