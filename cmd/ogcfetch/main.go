// Command ogcfetch runs one viewport load against an OGC API Features
// endpoint and writes the result as GeoJSON to stdout.
//
//	ogcfetch -endpoint https://demo.pygeoapi.io/master -list
//	ogcfetch -endpoint https://demo.pygeoapi.io/master -collection lakes -bbox -180,-90,180,90
//	ogcfetch -collection obs -lon -75 -lat 45 -zoom 5 -width 1280 -height 800 -arrow
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	arrowadapter "github.com/samirrijal/ogcview/internal/adapters/arrow"
	geojsonadapter "github.com/samirrijal/ogcview/internal/adapters/geojson"
	"github.com/samirrijal/ogcview/internal/adapters/ogcapi"
	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
	"github.com/samirrijal/ogcview/internal/pkg/logging"
)

type options struct {
	endpoint   string
	collection string
	bbox       string
	view       domain.ViewState
	width      int
	height     int
	columnar   bool
	limit      int
	list       bool
	timeout    time.Duration
	pretty     bool
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("ogcfetch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.endpoint, "endpoint", os.Getenv("OGCVIEW_OGC_DEFAULT_ENDPOINT"), "OGC API Features landing page")
	fs.StringVar(&o.collection, "collection", "", "collection id to load")
	fs.StringVar(&o.bbox, "bbox", "", "west,south,east,north; overrides the view flags")
	fs.Float64Var(&o.view.Longitude, "lon", -98.5795, "view center longitude")
	fs.Float64Var(&o.view.Latitude, "lat", 39.8283, "view center latitude")
	fs.Float64Var(&o.view.Zoom, "zoom", 3, "view zoom level")
	fs.IntVar(&o.width, "width", 1280, "viewport width in pixels")
	fs.IntVar(&o.height, "height", 800, "viewport height in pixels")
	fs.BoolVar(&o.columnar, "arrow", false, "request the columnar (Arrow IPC) encoding")
	fs.IntVar(&o.limit, "limit", domain.DefaultRowLimit, "maximum number of features")
	fs.BoolVar(&o.list, "list", false, "list collections instead of loading items")
	fs.DurationVar(&o.timeout, "timeout", 60*time.Second, "request timeout")
	fs.BoolVar(&o.pretty, "pretty", false, "indent the JSON output")
	fs.BoolVar(&o.verbose, "v", false, "log requests to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.endpoint == "" {
		return nil, errors.New("-endpoint is required")
	}
	if !o.list && o.collection == "" {
		return nil, errors.New("-collection is required unless -list is set")
	}
	return o, nil
}

func (o *options) query() (usecases.ItemsQuery, error) {
	format := domain.FormatGeoJSON
	if o.columnar {
		format = domain.FormatColumnar
	}
	q := usecases.ItemsQuery{
		Endpoint:     o.endpoint,
		CollectionID: o.collection,
		View:         o.view,
		Width:        o.width,
		Height:       o.height,
		Format:       format,
		Limit:        o.limit,
	}
	if o.bbox != "" {
		b, err := domain.ParseBoundingBox(o.bbox)
		if err != nil {
			return q, err
		}
		q.BBox = &b
	}
	return q, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger := logging.New(stderr, level, "text")
	ctx = logging.WithLogger(ctx, logger)

	client := ogcapi.NewClient(ogcapi.Options{Timeout: o.timeout, UserAgent: "ogcfetch/1.0"},
		geojsonadapter.New(), arrowadapter.New(arrowadapter.DefaultOptions()))
	catalog := usecases.NewCatalogService(client, o.endpoint, domain.DefaultRowLimit)

	enc := json.NewEncoder(stdout)
	if o.pretty {
		enc.SetIndent("", "  ")
	}

	if o.list {
		cols, err := catalog.ListCollections(ctx, o.endpoint)
		if err != nil {
			return err
		}
		logger.Debug("listed collections", "endpoint", o.endpoint, "count", len(cols))
		return enc.Encode(cols)
	}

	q, err := o.query()
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := catalog.Items(ctx, q)
	if err != nil {
		return err
	}
	logger.Debug("loaded features",
		"collection", o.collection,
		"bbox", res.RequestedBBox.String(),
		"format", string(res.SourceFormat),
		"count", len(res.Features),
		"elapsed", time.Since(start))

	return enc.Encode(geojsonadapter.ToFeatureCollection(res.Features))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ogcfetch: %v\n", err)
		os.Exit(1)
	}
}
