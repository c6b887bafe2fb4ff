package http

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"

	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
)

type recordingSession struct {
	calls    []string
	endpoint string
	id       string
	columnar bool
	view     domain.ViewState
	w, h     int
}

func (r *recordingSession) SetEndpoint(_ context.Context, endpoint string) {
	r.calls = append(r.calls, "endpoint")
	r.endpoint = endpoint
}
func (r *recordingSession) SelectCollection(id string) {
	r.calls = append(r.calls, "collection")
	r.id = id
}
func (r *recordingSession) SetColumnar(columnar bool) {
	r.calls = append(r.calls, "format")
	r.columnar = columnar
}
func (r *recordingSession) RequestLoad() { r.calls = append(r.calls, "load") }
func (r *recordingSession) ViewStateChanged(view domain.ViewState) {
	r.calls = append(r.calls, "view")
	r.view = view
}
func (r *recordingSession) Resize(w, h int) {
	r.calls = append(r.calls, "viewport")
	r.w, r.h = w, h
}

func TestApplyClientMessage(t *testing.T) {
	s := &recordingSession{}
	msgs := []string{
		`{"type":"endpoint","endpoint":"https://demo.pygeoapi.io/master"}`,
		`{"type":"collection","id":"lakes"}`,
		`{"type":"format","columnar":true}`,
		`{"type":"view","view":{"longitude":-2.93,"latitude":43.26,"zoom":12}}`,
		`{"type":"viewport","width":1280,"height":800}`,
		`{"type":"load"}`,
	}
	for _, m := range msgs {
		if err := applyClientMessage(context.Background(), s, []byte(m)); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
	}

	want := []string{"endpoint", "collection", "format", "view", "viewport", "load"}
	if len(s.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, s.calls)
	}
	for i := range want {
		if s.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], s.calls[i])
		}
	}
	if s.endpoint != "https://demo.pygeoapi.io/master" || s.id != "lakes" || !s.columnar {
		t.Errorf("unexpected session state: %+v", s)
	}
	if s.view.Zoom != 12 || s.w != 1280 || s.h != 800 {
		t.Errorf("unexpected view or viewport: %+v", s)
	}
}

func TestApplyClientMessage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{`},
		{"unknown type", `{"type":"zoom"}`},
		{"view without view", `{"type":"view"}`},
		{"zero viewport", `{"type":"viewport","width":0,"height":600}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSession{}
			if err := applyClientMessage(context.Background(), s, []byte(tt.raw)); err == nil {
				t.Error("expected an error")
			}
			if len(s.calls) != 0 {
				t.Errorf("expected no session calls, got %v", s.calls)
			}
		})
	}
}

func TestWSView_Messages(t *testing.T) {
	var sent [][]byte
	v := &wsView{write: func(msg interface{}) error {
		data, err := json.Marshal(msg)
		sent = append(sent, data)
		return err
	}}

	v.ShowCollections(nil, false)
	v.ShowStatus(domain.SessionState{Endpoint: "e", Status: domain.Status{State: domain.StatusLoading}})
	v.SetFeatures(&domain.LoadResult{
		Features:      []domain.Feature{{ID: "a", Properties: map[string]any{}, Geometry: orb.Point{1, 2}}},
		SourceFormat:  domain.FormatColumnar,
		RequestedBBox: domain.BoundingBox{West: 0, South: 0, East: 1, North: 1},
	})

	if len(sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sent))
	}

	var cols struct {
		Type        string        `json:"type"`
		Collections []interface{} `json:"collections"`
		Enabled     bool          `json:"enabled"`
	}
	json.Unmarshal(sent[0], &cols)
	if cols.Type != "collections" || cols.Collections == nil || cols.Enabled {
		t.Errorf("unexpected collections message: %s", sent[0])
	}

	var status struct {
		Type  string              `json:"type"`
		State domain.SessionState `json:"state"`
	}
	json.Unmarshal(sent[1], &status)
	if status.Type != "status" || status.State.Status.State != domain.StatusLoading {
		t.Errorf("unexpected status message: %s", sent[1])
	}

	var features struct {
		Type   string `json:"type"`
		Count  int    `json:"count"`
		Format string `json:"format"`
		Data   struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	json.Unmarshal(sent[2], &features)
	if features.Type != "features" || features.Count != 1 || features.Format != "arrow" || features.Data.Type != "FeatureCollection" {
		t.Errorf("unexpected features message: %s", sent[2])
	}
}

func TestSessionConfigFor(t *testing.T) {
	defaults := usecases.SessionConfig{DefaultEndpoint: "https://example.org", Width: 1024, Height: 768}

	cfg := sessionConfigFor(defaults, 0, 0)
	if cfg.Width != 1024 || cfg.Height != 768 {
		t.Errorf("expected default viewport, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.ID == "" {
		t.Error("expected a session id")
	}

	other := sessionConfigFor(defaults, 640, 480)
	if other.Width != 640 || other.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", other.Width, other.Height)
	}
	if other.ID == cfg.ID {
		t.Error("expected distinct session ids")
	}
	if other.DefaultEndpoint != defaults.DefaultEndpoint {
		t.Error("expected defaults to carry over")
	}
}
