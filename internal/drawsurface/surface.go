// Package drawsurface keeps the authoritative set of polygons drawn on a map
// and reports every change as a serializable multi-polygon.
package drawsurface

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/geometry"
	"github.com/geonotify/backend/internal/metrics"
)

// activeMarkerID identifies the marker placed on the active polygon.
const activeMarkerID = "active-polygon"

var (
	// ErrClosed is returned when a torn-down surface is used.
	ErrClosed = errors.New("draw surface is closed")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("draw surface is already initialized")

	// ErrNotInitialized is returned when a gesture arrives before Initialize.
	ErrNotInitialized = errors.New("draw surface is not initialized")
)

// Engine is the map and draw library the surface renders into.
type Engine interface {
	// RenderBaseMap draws the base map.
	RenderBaseMap() error

	// AddDrawControl registers the polygon drawing control and its listeners.
	AddDrawControl() error

	// RemoveDrawControl deregisters the drawing control and its listeners.
	RemoveDrawControl()

	// AddFeature adds a drawn feature to the draw layer.
	AddFeature(f *geojson.Feature)

	// RemoveAllFeatures clears the draw layer.
	RemoveAllFeatures()

	// FitBounds starts a camera transition to b. A later call supersedes it.
	FitBounds(b orb.Bound)

	// AddMarker places or moves the marker with the given id.
	AddMarker(id string, p orb.Point)

	// RemoveMarker removes the marker with the given id.
	RemoveMarker(id string)

	// Close releases every map resource, listener and running animation.
	Close() error
}

// ChangeFunc receives the full drawn geometry after each gesture.
type ChangeFunc func(area orb.MultiPolygon)

// Surface is an interactive polygon drawing surface bound to an Engine.
// It is not safe for concurrent use.
type Surface struct {
	engine   Engine
	logger   *zap.Logger
	onChange ChangeFunc

	features    []*geojson.Feature
	active      int
	initialized bool
	closed      bool
}

// New creates a surface that renders into engine and reports to onChange.
func New(engine Engine, logger *zap.Logger, onChange ChangeFunc) *Surface {
	if onChange == nil {
		onChange = func(orb.MultiPolygon) {}
	}
	return &Surface{
		engine:   engine,
		logger:   logger,
		onChange: onChange,
	}
}

// Initialize renders the base map, registers the draw control and seeds the
// surface with initial. The view is fitted only when initial has polygons.
func (s *Surface) Initialize(initial orb.MultiPolygon) error {
	if s.closed {
		return ErrClosed
	}
	if s.initialized {
		return ErrAlreadyInitialized
	}

	if err := s.engine.RenderBaseMap(); err != nil {
		return fmt.Errorf("failed to render base map: %w", err)
	}
	if err := s.engine.AddDrawControl(); err != nil {
		return fmt.Errorf("failed to register draw control: %w", err)
	}
	s.initialized = true

	s.load(initial)
	s.logger.Debug("Draw surface initialized", zap.Int("polygons", len(s.features)))
	return nil
}

// SetArea replaces every drawn polygon with area. It does not report a change.
func (s *Surface) SetArea(area orb.MultiPolygon) error {
	if err := s.usable(); err != nil {
		return err
	}

	s.engine.RemoveAllFeatures()
	s.load(area)
	return nil
}

// SetRawArea decodes raw and replaces the drawn polygons with it. Malformed
// input clears the surface.
func (s *Surface) SetRawArea(raw string) error {
	if err := s.usable(); err != nil {
		return err
	}

	area, err := geometry.Decode(raw)
	if err != nil {
		s.logger.Warn("Clearing draw surface after malformed geometry", zap.Error(err))
		metrics.MalformedGeometryTotal.Inc()
		area = orb.MultiPolygon{}
	}
	return s.SetArea(area)
}

// HandleCreate records newly drawn features. A feature whose ID is already
// drawn replaces that polygon. The last created polygon becomes active.
func (s *Surface) HandleCreate(created []*geojson.Feature) error {
	if err := s.usable(); err != nil {
		return err
	}

	touched, replaced := -1, false
	for _, f := range created {
		for i, poly := range s.polygonsOf(f) {
			id := featureID(f, i)
			if idx := s.indexOf(id); idx >= 0 {
				s.features[idx].Geometry = poly
				touched, replaced = idx, true
				continue
			}
			nf := newFeature(poly, id)
			s.features = append(s.features, nf)
			s.engine.AddFeature(nf)
			touched = len(s.features) - 1
		}
	}
	if touched < 0 {
		return nil
	}

	s.active = touched
	if replaced {
		s.redraw()
	}
	s.focusActive()
	s.emit()
	return nil
}

// HandleUpdate replaces the geometry of edited features, matched by ID.
// The last updated polygon becomes active.
func (s *Surface) HandleUpdate(updated []*geojson.Feature) error {
	if err := s.usable(); err != nil {
		return err
	}

	touched := -1
	for _, f := range updated {
		if f == nil {
			continue
		}
		idx := s.indexOf(f.ID)
		if idx < 0 {
			s.logger.Debug("Ignoring update for unknown feature", zap.Any("id", f.ID))
			continue
		}
		polys := s.polygonsOf(f)
		if len(polys) == 0 {
			continue
		}
		s.features[idx].Geometry = polys[0]
		touched = idx
	}
	if touched < 0 {
		return nil
	}

	s.active = touched
	s.redraw()
	s.focusActive()
	s.emit()
	return nil
}

// HandleDelete removes features by ID. Deleting the last polygon reports an
// empty area.
func (s *Surface) HandleDelete(deleted []*geojson.Feature) error {
	if err := s.usable(); err != nil {
		return err
	}

	removed := 0
	for _, f := range deleted {
		if f == nil {
			continue
		}
		idx := s.indexOf(f.ID)
		if idx < 0 {
			continue
		}
		s.features = append(s.features[:idx], s.features[idx+1:]...)
		if idx < s.active {
			s.active--
		}
		removed++
	}
	if removed == 0 {
		return nil
	}

	if s.active >= len(s.features) {
		s.active = len(s.features) - 1
	}
	if s.active < 0 {
		s.active = 0
	}

	s.redraw()
	if len(s.features) == 0 {
		s.engine.RemoveMarker(activeMarkerID)
	} else {
		s.focusActive()
	}
	s.emit()
	return nil
}

// Next makes the following polygon active, wrapping to the first.
func (s *Surface) Next() int {
	return s.step(1)
}

// Previous makes the preceding polygon active, wrapping to the last.
func (s *Surface) Previous() int {
	return s.step(-1)
}

// ActiveIndex returns the index of the active polygon, 0 when empty.
func (s *Surface) ActiveIndex() int {
	return s.active
}

// Count returns the number of drawn polygons.
func (s *Surface) Count() int {
	return len(s.features)
}

// FeatureIDs returns the IDs of the drawn features in order.
func (s *Surface) FeatureIDs() []string {
	ids := make([]string, 0, len(s.features))
	for _, f := range s.features {
		ids = append(ids, fmt.Sprint(f.ID))
	}
	return ids
}

// Area returns a copy of the drawn geometry.
func (s *Surface) Area() orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(s.features))
	for _, f := range s.features {
		if p, ok := f.Geometry.(orb.Polygon); ok {
			mp = append(mp, p.Clone())
		}
	}
	return mp
}

// Closed reports whether the surface has been torn down.
func (s *Surface) Closed() bool {
	return s.closed
}

// Close deregisters the draw control, removes the marker and releases the
// engine. Calling Close more than once is a no-op.
func (s *Surface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.features = nil
	s.active = 0

	if s.initialized {
		s.engine.RemoveMarker(activeMarkerID)
		s.engine.RemoveDrawControl()
	}
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("failed to release map engine: %w", err)
	}
	s.logger.Debug("Draw surface closed")
	return nil
}

func (s *Surface) usable() error {
	if s.closed {
		return ErrClosed
	}
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// load seeds features from area, fits the view over all of them and resets
// the active index.
func (s *Surface) load(area orb.MultiPolygon) {
	s.features = make([]*geojson.Feature, 0, len(area))
	for _, poly := range area {
		if len(poly) == 0 {
			continue
		}
		f := newFeature(poly.Clone(), uuid.NewString())
		s.features = append(s.features, f)
		s.engine.AddFeature(f)
	}
	s.active = 0

	if len(s.features) == 0 {
		s.engine.RemoveMarker(activeMarkerID)
		return
	}
	if b, ok := geometry.Bounds(s.Area()); ok {
		s.engine.FitBounds(b)
	}
	s.placeMarker()
}

func (s *Surface) step(delta int) int {
	n := len(s.features)
	if n == 0 || s.closed {
		return s.active
	}
	s.active = ((s.active+delta)%n + n) % n
	s.focusActive()
	return s.active
}

func (s *Surface) focusActive() {
	if s.active >= len(s.features) {
		return
	}
	s.engine.FitBounds(s.features[s.active].Geometry.Bound())
	s.placeMarker()
}

func (s *Surface) placeMarker() {
	poly, ok := s.features[s.active].Geometry.(orb.Polygon)
	if !ok {
		return
	}
	centroid, _ := planar.CentroidArea(poly)
	s.engine.AddMarker(activeMarkerID, centroid)
}

func (s *Surface) redraw() {
	s.engine.RemoveAllFeatures()
	for _, f := range s.features {
		s.engine.AddFeature(f)
	}
}

func (s *Surface) emit() {
	s.onChange(s.Area())
}

func (s *Surface) indexOf(id any) int {
	if id == nil {
		return -1
	}
	key := fmt.Sprint(id)
	for i, f := range s.features {
		if fmt.Sprint(f.ID) == key {
			return i
		}
	}
	return -1
}

// featureID keeps the draw library's ID for the first polygon of a feature
// and mints fresh IDs for the rest.
func featureID(f *geojson.Feature, n int) string {
	if f.ID != nil && n == 0 {
		if id := fmt.Sprint(f.ID); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func newFeature(poly orb.Polygon, id string) *geojson.Feature {
	f := geojson.NewFeature(poly)
	f.ID = id
	return f
}

// polygonsOf extracts the polygons of a Polygon or MultiPolygon feature,
// keeping only the outer ring of each. Rings that cannot bound an area are
// dropped.
func (s *Surface) polygonsOf(f *geojson.Feature) []orb.Polygon {
	if f == nil || f.Geometry == nil {
		return nil
	}
	var rings []orb.Ring
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			rings = append(rings, g[0])
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if len(p) > 0 {
				rings = append(rings, p[0])
			}
		}
	default:
		return nil
	}

	out := make([]orb.Polygon, 0, len(rings))
	for _, r := range rings {
		if !geometry.ValidRing(r) {
			s.logger.Debug("Dropping degenerate ring", zap.Any("id", f.ID), zap.Int("points", len(r)))
			continue
		}
		out = append(out, orb.Polygon{r.Clone()})
	}
	return out
}
