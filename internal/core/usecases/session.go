package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/ports"
	"github.com/samirrijal/ogcview/internal/pkg/geospatial"
	"github.com/samirrijal/ogcview/internal/pkg/metrics"
)

// Load triggers, used as metric labels and in load events.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

const publishTimeout = 2 * time.Second

// SessionConfig holds the per-session settings.
type SessionConfig struct {
	ID              string
	DefaultEndpoint string
	RowLimit        int
	Debounce        time.Duration
	Width           int
	Height          int
	InitialView     domain.ViewState
	Format          domain.FetchFormat
}

// SessionOption customizes a ViewerSession.
type SessionOption func(*ViewerSession)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) SessionOption {
	return func(s *ViewerSession) { s.clk = clk }
}

// WithEndpointStore persists the endpoint between sessions of one client.
func WithEndpointStore(store ports.EndpointStore) SessionOption {
	return func(s *ViewerSession) { s.prefs = store }
}

// WithEventPublisher publishes a LoadEvent for every resolved load.
func WithEventPublisher(pub ports.EventPublisher) SessionOption {
	return func(s *ViewerSession) { s.events = pub }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *ViewerSession) { s.log = l }
}

// ViewerSession owns the state of one map viewer and drives its loads.
//
// All state transitions run under mu. Network calls run in their own
// goroutines and report back through finishLoad and finishCollections,
// which apply a result only if its sequence number is still the latest.
type ViewerSession struct {
	mu sync.Mutex

	id     string
	cfg    SessionConfig
	source ports.FeatureSource
	view   ports.SessionView
	prefs  ports.EndpointStore
	events ports.EventPublisher
	clk    clock.Clock
	log    *slog.Logger
	sched  *RefreshScheduler

	state       domain.SessionState
	collections []domain.Collection
	selectable  bool
	camera      domain.ViewState
	width       int
	height      int
	// autoRefresh is set by the first successful manual load of the
	// selected collection.
	autoRefresh bool

	loadSeq    uint64
	loadCancel context.CancelFunc

	colSeq      uint64
	colCancel   context.CancelFunc
	colEndpoint string

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewViewerSession creates a session. Call Start to seed it.
func NewViewerSession(source ports.FeatureSource, view ports.SessionView, cfg SessionConfig, opts ...SessionOption) *ViewerSession {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = domain.DefaultRowLimit
	}
	if cfg.Format == "" {
		cfg.Format = domain.FormatGeoJSON
	}

	s := &ViewerSession{
		id:     cfg.ID,
		cfg:    cfg,
		source: source,
		view:   view,
		camera: cfg.InitialView,
		width:  cfg.Width,
		height: cfg.Height,
		state: domain.SessionState{
			Format: cfg.Format,
			Status: domain.Status{State: domain.StatusIdle},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clk == nil {
		s.clk = clock.New()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("session", s.id)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sched = NewRefreshScheduler(s.clk, cfg.Debounce, s.debounceElapsed)
	return s
}

// ID returns the session id.
func (s *ViewerSession) ID() string { return s.id }

// Start pushes the initial view and seeds the endpoint from the persisted
// value, then urlEndpoint, then the configured default.
func (s *ViewerSession) Start(ctx context.Context, urlEndpoint string) {
	seed := ""
	if s.prefs != nil {
		saved, ok, err := s.prefs.GetPersistedEndpoint(ctx)
		if err != nil {
			s.log.Warn("read persisted endpoint", "error", err)
		} else if ok {
			seed = strings.TrimSpace(saved)
		}
	}
	if seed == "" {
		seed = strings.TrimSpace(urlEndpoint)
	}
	if seed == "" {
		seed = strings.TrimSpace(s.cfg.DefaultEndpoint)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.view.SetViewState(s.camera)
	s.view.ShowStatus(s.state)
	if seed != "" {
		s.setEndpointLocked(seed)
	}
}

// SetEndpoint switches to a new endpoint and fetches its collections.
// Blank input is ignored.
func (s *ViewerSession) SetEndpoint(ctx context.Context, endpoint string) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return
	}
	if s.prefs != nil {
		if err := s.prefs.SetPersistedEndpoint(ctx, endpoint); err != nil {
			s.log.Warn("persist endpoint", "endpoint", endpoint, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.setEndpointLocked(endpoint)
}

func (s *ViewerSession) setEndpointLocked(endpoint string) {
	if endpoint == s.colEndpoint {
		return
	}
	if s.colEndpoint == "" && s.selectable && endpoint == s.state.Endpoint {
		return
	}

	if s.colCancel != nil {
		s.colCancel()
	}
	s.colSeq++
	seq := s.colSeq
	ctx, cancel := context.WithCancel(s.ctx)
	s.colCancel = cancel
	s.colEndpoint = endpoint

	// Loads against the previous endpoint are superseded.
	s.cancelLoadLocked()
	s.sched.Reset()
	s.autoRefresh = false
	s.setStatusLocked(domain.Status{State: domain.StatusLoading})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cols, err := s.source.ListCollections(ctx, endpoint)
		s.finishCollections(seq, endpoint, cols, err)
	}()
}

func (s *ViewerSession) finishCollections(seq uint64, endpoint string, cols []domain.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.colSeq {
		metrics.StaleResultsDiscarded.WithLabelValues("collections").Inc()
		return
	}
	s.colCancel()
	s.colCancel = nil
	s.colEndpoint = ""

	// Any answer invalidates the selection made against the previous list.
	s.clearSelectionLocked()

	if err != nil {
		s.log.Warn("fetch collections failed", "endpoint", endpoint, "error", err)
		s.collections = nil
		s.selectable = false
		s.view.ShowCollections(nil, false)
		s.setStatusLocked(domain.Status{State: domain.StatusError, Message: err.Error()})
		if rejectedEndpoint(err) {
			s.forgetEndpointLocked(endpoint)
		}
		return
	}

	s.log.Info("collections loaded", "endpoint", endpoint, "count", len(cols))
	s.state.Endpoint = endpoint
	s.collections = cols
	s.selectable = true
	s.view.ShowCollections(s.copyCollections(), true)
	s.setStatusLocked(domain.Status{State: domain.StatusIdle})
}

// SelectCollection selects a collection; "" clears the selection.
// Auto-refresh stays off until the next manual load succeeds.
func (s *ViewerSession) SelectCollection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.clearSelectionLocked()
	s.state.CollectionID = strings.TrimSpace(id)
	s.setStatusLocked(domain.Status{State: domain.StatusIdle})
}

func (s *ViewerSession) clearSelectionLocked() {
	s.cancelLoadLocked()
	s.sched.Reset()
	s.autoRefresh = false
	s.state.CollectionID = ""
}

// SetColumnar selects the format used by subsequent loads.
func (s *ViewerSession) SetColumnar(columnar bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	format := domain.FormatGeoJSON
	if columnar {
		format = domain.FormatColumnar
	}
	if format == s.state.Format {
		return
	}
	s.state.Format = format
	s.view.ShowStatus(s.state)
}

// RequestLoad loads the selected collection for the current view,
// superseding any pending or in-flight load. It is a no-op without a
// selected collection.
func (s *ViewerSession) RequestLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.canLoadLocked() {
		return
	}
	s.sched.Begin()
	s.startLoadLocked(TriggerManual)
}

// ViewStateChanged records the camera reported by the renderer.
func (s *ViewerSession) ViewStateChanged(view domain.ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.camera = view
	if s.autoRefresh && s.canLoadLocked() {
		s.sched.ViewChanged()
	}
}

// Resize records the viewport size in pixels. Non-positive sizes are ignored.
func (s *ViewerSession) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// Snapshot returns a copy of the session state.
func (s *ViewerSession) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Collections returns the current collection list and whether it is selectable.
func (s *ViewerSession) Collections() ([]domain.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCollections(), s.selectable
}

// RefreshState exposes the scheduler state.
func (s *ViewerSession) RefreshState() RefreshState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.State()
}

// CurrentBounds is the bbox the next load would request.
func (s *ViewerSession) CurrentBounds() domain.BoundingBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geospatial.ComputeBounds(s.camera, s.width, s.height)
}

// Close cancels outstanding work and waits for its goroutines.
func (s *ViewerSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.sched.Reset()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *ViewerSession) canLoadLocked() bool {
	return s.state.Endpoint != "" && s.state.CollectionID != "" && s.colEndpoint == ""
}

func (s *ViewerSession) debounceElapsed(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.sched.Elapsed(gen) {
		return
	}
	if !s.canLoadLocked() {
		s.sched.Reset()
		return
	}
	metrics.DebounceFires.Inc()
	s.startLoadLocked(TriggerAuto)
}

func (s *ViewerSession) startLoadLocked(trigger string) {
	s.cancelLoadLocked()
	seq := s.loadSeq
	ctx, cancel := context.WithCancel(s.ctx)
	s.loadCancel = cancel

	req := domain.LoadRequest{
		Endpoint:     s.state.Endpoint,
		CollectionID: s.state.CollectionID,
		BBox:         geospatial.ComputeBounds(s.camera, s.width, s.height),
		Format:       s.state.Format,
		Limit:        s.cfg.RowLimit,
	}
	s.setStatusLocked(domain.Status{State: domain.StatusLoading})
	metrics.SessionLoads.WithLabelValues(trigger).Inc()
	s.log.Debug("load started", "trigger", trigger, "collection", req.CollectionID, "bbox", req.BBox.String(), "format", req.Format)

	start := s.clk.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.source.Load(ctx, req)
		s.finishLoad(seq, trigger, req, res, err, s.clk.Now().Sub(start))
	}()
}

// cancelLoadLocked cancels the in-flight load and invalidates its result.
func (s *ViewerSession) cancelLoadLocked() {
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.loadSeq++
}

func (s *ViewerSession) finishLoad(seq uint64, trigger string, req domain.LoadRequest, res *domain.LoadResult, err error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.loadSeq {
		metrics.StaleResultsDiscarded.WithLabelValues("load").Inc()
		return
	}
	s.loadCancel()
	s.loadCancel = nil
	// Later loads get a new sequence number; this one is done.
	s.loadSeq++

	event := &domain.LoadEvent{
		SessionID:    s.id,
		Endpoint:     req.Endpoint,
		CollectionID: req.CollectionID,
		Format:       req.Format,
		BBox:         req.BBox,
		Duration:     elapsed,
		Time:         s.clk.Now().UTC(),
	}

	if err != nil {
		s.log.Warn("load failed", "trigger", trigger, "collection", req.CollectionID, "format", req.Format, "error", err)
		event.Outcome = "error"
		event.Error = err.Error()
		s.setStatusLocked(domain.Status{State: domain.StatusError, Message: err.Error()})
	} else {
		s.log.Info("features loaded", "trigger", trigger, "collection", req.CollectionID, "features", len(res.Features), "format", res.SourceFormat)
		event.Outcome = "ok"
		event.Features = len(res.Features)
		s.view.SetFeatures(res)
		if trigger == TriggerManual {
			s.autoRefresh = true
		}
		s.setStatusLocked(domain.Status{State: domain.StatusIdle})
	}

	s.sched.Resolved()
	s.publishLocked(event)
}

// rejectedEndpoint reports whether the server answered but not as an
// OGC API. Network failures keep the persisted endpoint.
func rejectedEndpoint(err error) bool {
	var httpErr *domain.HTTPError
	var decErr *domain.DecodeError
	return errors.As(err, &httpErr) || errors.As(err, &decErr)
}

func (s *ViewerSession) forgetEndpointLocked(endpoint string) {
	if s.prefs == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.prefs.ForgetEndpoint(ctx, endpoint); err != nil {
			s.log.Warn("forget endpoint", "endpoint", endpoint, "error", err)
		}
	}()
}

func (s *ViewerSession) publishLocked(event *domain.LoadEvent) {
	if s.events == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.events.PublishLoadEvent(ctx, event); err != nil {
			metrics.EventPublishErrors.Inc()
			s.log.Warn("publish load event", "collection", event.CollectionID, "error", err)
		}
	}()
}

func (s *ViewerSession) setStatusLocked(status domain.Status) {
	s.state.Status = status
	s.view.ShowStatus(s.state)
}

func (s *ViewerSession) copyCollections() []domain.Collection {
	if s.collections == nil {
		return nil
	}
	out := make([]domain.Collection, len(s.collections))
	copy(out, s.collections)
	return out
}
