// Package mapengine provides a headless map engine that records what the
// browser map should show.
package mapengine

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/models"
)

// Headless records the draw layer, markers and camera of one map instead of
// rendering them. The browser replays the recorded state.
type Headless struct {
	logger *zap.Logger

	baseMap     bool
	drawControl bool
	features    []*geojson.Feature
	markers     map[string]orb.Point
	camera      *models.Camera
	seq         uint64
	closed      bool
}

// Option configures a Headless engine.
type Option func(*Headless)

// WithStartSeq makes camera sequence numbers continue after seq, so a remounted
// map never reports an older camera than the one it replaces.
func WithStartSeq(seq uint64) Option {
	return func(h *Headless) {
		h.seq = seq
	}
}

// NewHeadless creates an empty headless engine.
func NewHeadless(logger *zap.Logger, opts ...Option) *Headless {
	h := &Headless{
		logger:  logger,
		markers: make(map[string]orb.Point),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Seq returns the sequence number of the latest camera transition. It
// survives Close.
func (h *Headless) Seq() uint64 {
	return h.seq
}

// RenderBaseMap marks the base map as rendered.
func (h *Headless) RenderBaseMap() error {
	if h.closed {
		return nil
	}
	h.baseMap = true
	return nil
}

// AddDrawControl registers the polygon draw control.
func (h *Headless) AddDrawControl() error {
	if h.closed {
		return nil
	}
	h.drawControl = true
	return nil
}

// RemoveDrawControl deregisters the polygon draw control.
func (h *Headless) RemoveDrawControl() {
	h.drawControl = false
}

// AddFeature appends f to the draw layer.
func (h *Headless) AddFeature(f *geojson.Feature) {
	if h.closed {
		return
	}
	h.features = append(h.features, f)
}

// RemoveAllFeatures clears the draw layer.
func (h *Headless) RemoveAllFeatures() {
	h.features = nil
}

// FitBounds records a camera transition. The newest transition wins.
func (h *Headless) FitBounds(b orb.Bound) {
	if h.closed {
		return
	}
	h.seq++
	h.camera = &models.Camera{Seq: h.seq, Bound: b}
}

// AddMarker places or moves a marker.
func (h *Headless) AddMarker(id string, p orb.Point) {
	if h.closed {
		return
	}
	h.markers[id] = p
}

// RemoveMarker removes a marker if present.
func (h *Headless) RemoveMarker(id string) {
	delete(h.markers, id)
}

// Close drops every recorded resource. Later calls are ignored.
func (h *Headless) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.baseMap = false
	h.drawControl = false
	h.features = nil
	h.markers = map[string]orb.Point{}
	h.camera = nil
	h.logger.Debug("Headless map engine released")
	return nil
}

// Snapshot is the replayable state of a headless engine.
type Snapshot struct {
	BaseMap     bool
	DrawControl bool
	Features    int
	Camera      *models.Camera
	Markers     []models.Marker
}

// Snapshot returns the current recorded state.
func (h *Headless) Snapshot() Snapshot {
	snap := Snapshot{
		BaseMap:     h.baseMap,
		DrawControl: h.drawControl,
		Features:    len(h.features),
		Markers:     make([]models.Marker, 0, len(h.markers)),
	}
	if h.camera != nil {
		c := *h.camera
		snap.Camera = &c
	}
	for id, p := range h.markers {
		snap.Markers = append(snap.Markers, models.Marker{ID: id, Point: p})
	}
	sort.Slice(snap.Markers, func(i, j int) bool { return snap.Markers[i].ID < snap.Markers[j].ID })
	return snap
}

// Closed reports whether Close has been called.
func (h *Headless) Closed() bool {
	return h.closed
}
