// Package ogcapi fetches collections and items from OGC API Features endpoints.
package ogcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/ports"
	"github.com/samirrijal/ogcview/internal/pkg/metrics"
	"github.com/samirrijal/ogcview/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("ogcview/ogcapi")

// Options configures a Client.
type Options struct {
	Timeout     time.Duration
	MaxRowLimit int
	UserAgent   string
}

// Client is a ports.FeatureSource over plain HTTP.
type Client struct {
	HTTPClient *http.Client
	opts       Options
	decoders   map[domain.FetchFormat]ports.FeatureDecoder
	group      singleflight.Group
}

// NewClient creates a client that decodes items with the given decoders.
func NewClient(opts Options, decoders ...ports.FeatureDecoder) *Client {
	if opts.MaxRowLimit <= 0 {
		opts.MaxRowLimit = domain.DefaultRowLimit
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ogcview"
	}
	c := &Client{
		HTTPClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		decoders:   make(map[domain.FetchFormat]ports.FeatureDecoder, len(decoders)),
	}
	for _, d := range decoders {
		c.decoders[d.Format()] = d
	}
	return c
}

type collectionsDoc struct {
	Collections []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"collections"`
}

// ListCollections returns the collections advertised by endpoint.
// Concurrent calls for the same endpoint share one request.
func (c *Client) ListCollections(ctx context.Context, endpoint string) ([]domain.Collection, error) {
	base := trimEndpoint(endpoint)
	ch := c.group.DoChan(base, func() (any, error) {
		return c.listCollections(context.WithoutCancel(ctx), base)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]domain.Collection)
		out := make([]domain.Collection, len(shared))
		copy(out, shared)
		return out, nil
	}
}

func (c *Client) listCollections(ctx context.Context, base string) ([]domain.Collection, error) {
	ctx, span := tracer.Start(ctx, "ogcapi.ListCollections")
	defer span.End()
	span.SetAttributes(telemetry.AttrEndpoint.String(base))

	start := time.Now()
	body, err := c.get(ctx, base+"/collections", "application/json")
	if err != nil {
		c.fail(span, "collections", "", err, start)
		return nil, err
	}

	var doc collectionsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		derr := &domain.DecodeError{Reason: "invalid collections document", Err: err}
		c.fail(span, "collections", "", derr, start)
		return nil, derr
	}

	out := make([]domain.Collection, 0, len(doc.Collections))
	for _, col := range doc.Collections {
		title := col.Title
		if title == "" {
			title = col.ID
		}
		out = append(out, domain.Collection{ID: col.ID, Title: title, Description: col.Description})
	}

	metrics.ObserveLoader("collections", "", "ok", time.Since(start))
	return out, nil
}

// Load fetches the items of one collection inside a bounding box.
func (c *Client) Load(ctx context.Context, req domain.LoadRequest) (*domain.LoadResult, error) {
	dec, ok := c.decoders[req.Format]
	if !ok {
		return nil, fmt.Errorf("no decoder registered for format %q", req.Format)
	}
	limit := c.effectiveLimit(req.Limit)
	format := string(req.Format)

	ctx, span := tracer.Start(ctx, "ogcapi.Load")
	defer span.End()
	span.SetAttributes(
		telemetry.AttrEndpoint.String(req.Endpoint),
		telemetry.AttrCollection.String(req.CollectionID),
		telemetry.AttrFormat.String(format),
		telemetry.AttrBBox.String(req.BBox.String()),
		telemetry.AttrLimit.Int(limit),
	)

	start := time.Now()
	body, err := c.get(ctx, ItemsURL(req.Endpoint, req.CollectionID, req.BBox, limit, dec.FormatToken()), dec.Accept())
	if err != nil {
		c.fail(span, "items", format, err, start)
		return nil, err
	}
	metrics.PayloadSize.WithLabelValues(format).Observe(float64(len(body)))

	features, err := dec.Decode(body)
	if err != nil {
		c.fail(span, "items", format, err, start)
		return nil, err
	}
	if len(features) > limit {
		features = features[:limit]
	}

	span.SetAttributes(telemetry.AttrFeatures.Int(len(features)))
	metrics.ObserveLoader("items", format, "ok", time.Since(start))
	metrics.FeaturesPerLoad.WithLabelValues(format).Observe(float64(len(features)))

	return &domain.LoadResult{
		Features:      features,
		SourceFormat:  req.Format,
		RequestedBBox: req.BBox,
	}, nil
}

// ItemsURL builds {endpoint}/collections/{id}/items?bbox=..&limit=..[&f=token].
// The bbox commas are left unescaped.
func ItemsURL(endpoint, collectionID string, bbox domain.BoundingBox, limit int, formatToken string) string {
	var b strings.Builder
	b.WriteString(trimEndpoint(endpoint))
	b.WriteString("/collections/")
	b.WriteString(url.PathEscape(collectionID))
	b.WriteString("/items?bbox=")
	b.WriteString(bbox.String())
	b.WriteString("&limit=")
	b.WriteString(strconv.Itoa(limit))
	if formatToken != "" {
		b.WriteString("&f=")
		b.WriteString(url.QueryEscape(formatToken))
	}
	return b.String()
}

func (c *Client) effectiveLimit(limit int) int {
	if limit <= 0 {
		limit = domain.DefaultRowLimit
	}
	if limit > c.opts.MaxRowLimit {
		limit = c.opts.MaxRowLimit
	}
	return limit
}

func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &domain.HTTPError{Status: resp.StatusCode, StatusText: statusText(resp)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	return body, nil
}

func (c *Client) fail(span trace.Span, op, format string, err error, start time.Time) {
	outcome := "error"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome = "canceled"
	}
	var herr *domain.HTTPError
	if errors.As(err, &herr) {
		span.SetAttributes(telemetry.AttrStatusCode.Int(herr.Status))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.ObserveLoader(op, format, outcome, time.Since(start))
}

// statusText returns the reason phrase the server sent, or the standard one.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func trimEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}
