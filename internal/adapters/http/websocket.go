package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	geojsonadapter "github.com/samirrijal/ogcview/internal/adapters/geojson"
	natsadapter "github.com/samirrijal/ogcview/internal/adapters/nats"
	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
	"github.com/samirrijal/ogcview/internal/pkg/metrics"
)

const pingInterval = 30 * time.Second

// clientMessage is a user intent sent by the viewer.
//
//	{"type":"endpoint","endpoint":"https://..."}
//	{"type":"collection","id":"parks"}
//	{"type":"format","columnar":true}
//	{"type":"load"}
//	{"type":"view","view":{"longitude":..,"latitude":..,"zoom":..}}
//	{"type":"viewport","width":1280,"height":800}
type clientMessage struct {
	Type     string            `json:"type"`
	Endpoint string            `json:"endpoint,omitempty"`
	ID       string            `json:"id,omitempty"`
	Columnar bool              `json:"columnar,omitempty"`
	View     *domain.ViewState `json:"view,omitempty"`
	Width    int               `json:"width,omitempty"`
	Height   int               `json:"height,omitempty"`
}

// Server messages.
type featuresMessage struct {
	Type     string                            `json:"type"` // "features"
	Data     *geojsonadapter.FeatureCollection `json:"data"`
	Count    int                               `json:"count"`
	Format   domain.FetchFormat                `json:"format"`
	BBox     domain.BoundingBox                `json:"bbox"`
	Finished time.Time                         `json:"finished"`
}

type viewMessage struct {
	Type string           `json:"type"` // "view"
	View domain.ViewState `json:"view"`
}

type collectionsMessage struct {
	Type        string              `json:"type"` // "collections"
	Collections []domain.Collection `json:"collections"`
	Enabled     bool                `json:"enabled"`
}

type statusMessage struct {
	Type  string              `json:"type"` // "status"
	State domain.SessionState `json:"state"`
}

type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// sessionControl is the part of usecases.ViewerSession driven by clients.
type sessionControl interface {
	SetEndpoint(ctx context.Context, endpoint string)
	SelectCollection(id string)
	SetColumnar(columnar bool)
	RequestLoad()
	ViewStateChanged(view domain.ViewState)
	Resize(width, height int)
}

// applyClientMessage decodes one client frame and forwards it to the session.
func applyClientMessage(ctx context.Context, s sessionControl, raw []byte) error {
	var m clientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("invalid JSON")
	}

	switch m.Type {
	case "endpoint":
		s.SetEndpoint(ctx, m.Endpoint)
	case "collection":
		s.SelectCollection(m.ID)
	case "format":
		s.SetColumnar(m.Columnar)
	case "load":
		s.RequestLoad()
	case "view":
		if m.View == nil {
			return fmt.Errorf("view message without view")
		}
		s.ViewStateChanged(*m.View)
	case "viewport":
		if m.Width <= 0 || m.Height <= 0 {
			return fmt.Errorf("viewport width and height must be positive")
		}
		s.Resize(m.Width, m.Height)
	default:
		return fmt.Errorf("unknown message type: %q", m.Type)
	}
	return nil
}

// wsView is the ports.SessionView of one WebSocket client.
type wsView struct {
	write func(v interface{}) error
	log   *slog.Logger
}

func (v *wsView) send(msg interface{}) {
	if err := v.write(msg); err != nil {
		v.log.Debug("ws write failed", "error", err)
	}
}

func (v *wsView) SetFeatures(res *domain.LoadResult) {
	v.send(featuresMessage{
		Type:     "features",
		Data:     geojsonadapter.ToFeatureCollection(res.Features),
		Count:    len(res.Features),
		Format:   res.SourceFormat,
		BBox:     res.RequestedBBox,
		Finished: time.Now().UTC(),
	})
}

func (v *wsView) SetViewState(view domain.ViewState) {
	v.send(viewMessage{Type: "view", View: view})
}

func (v *wsView) ShowCollections(cols []domain.Collection, enabled bool) {
	if cols == nil {
		cols = []domain.Collection{}
	}
	v.send(collectionsMessage{Type: "collections", Collections: cols, Enabled: enabled})
}

func (v *wsView) ShowStatus(state domain.SessionState) {
	v.send(statusMessage{Type: "status", State: state})
}

// sessionConfigFor derives a session config from the defaults and the
// upgrade query (w, h).
func sessionConfigFor(defaults usecases.SessionConfig, width, height int) usecases.SessionConfig {
	cfg := defaults
	cfg.ID = uuid.NewString()
	if width > 0 && height > 0 {
		cfg.Width, cfg.Height = width, height
	}
	return cfg
}

// SessionWebSocketHandler runs one viewer session per connection.
// Query parameters: api (endpoint seed), client (persistence key), w and h.
func SessionWebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		clientID := c.Query("client")
		if clientID == "" {
			clientID = uuid.NewString()
		}
		width, _ := strconv.Atoi(c.Query("w"))
		height, _ := strconv.Atoi(c.Query("h"))
		cfg := sessionConfigFor(deps.SessionDefaults, width, height)
		log := slog.Default().With("session", cfg.ID, "client", clientID, "remote", c.RemoteAddr().String())

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		opts := []usecases.SessionOption{usecases.WithLogger(slog.Default().With("client", clientID))}
		if deps.Store != nil {
			opts = append(opts, usecases.WithEndpointStore(usecases.NewEndpointPreferences(deps.Store, clientID, deps.EndpointTTL)))
		}
		if sink := deps.eventSink(); sink != nil {
			opts = append(opts, usecases.WithEventPublisher(sink))
		}

		session := usecases.NewViewerSession(deps.Source, &wsView{write: writeJSON, log: log}, cfg, opts...)
		metrics.ActiveSessions.Inc()
		log.Info("viewer session started")
		defer func() {
			session.Close()
			metrics.ActiveSessions.Dec()
			log.Info("viewer session closed")
		}()

		ctx := context.Background()
		session.Start(ctx, c.Query("api"))

		done := make(chan struct{})
		defer close(done)
		go keepAlive(c, &mu, done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := applyClientMessage(ctx, session, msg); err != nil {
				_ = writeJSON(errorMessage{Type: "error", Message: err.Error()})
			}
		}
	}
}

// ActivityWebSocketHandler relays load events from NATS. An optional
// ?collection= narrows the feed to one collection.
func ActivityWebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("activity ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		subject := natsadapter.SubjectAll
		if col := strings.TrimSpace(c.Query("collection")); col != "" {
			subject = natsadapter.Subject(col)
		}

		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			mu.Lock()
			defer mu.Unlock()
			_ = c.WriteMessage(websocket.TextMessage, msg.Data)
		})
		if err != nil {
			slog.Warn("activity subscribe failed", "subject", subject, "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		done := make(chan struct{})
		defer close(done)
		go keepAlive(c, &mu, done)

		// Drain client frames until the connection closes.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		slog.Info("activity ws client disconnected", "remote", remoteAddr)
	}
}

func keepAlive(c *websocket.Conn, mu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mu.Lock()
			err := c.WriteMessage(websocket.PingMessage, nil)
			mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
