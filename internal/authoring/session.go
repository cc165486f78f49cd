// Package authoring binds a notification draft to its geometry editor and
// keeps the live authoring sessions of the dashboard.
package authoring

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/drawsurface"
	"github.com/geonotify/backend/internal/geometry"
	"github.com/geonotify/backend/internal/mapengine"
	"github.com/geonotify/backend/internal/metrics"
	"github.com/geonotify/backend/internal/models"
	"github.com/geonotify/backend/internal/notification"
)

var (
	// ErrGlobeView is returned for geometry edits while the draft is sent to everyone.
	ErrGlobeView = errors.New("geometry editing is unavailable while sending to everyone")

	// ErrUnknownDrawEvent is returned for a draw event kind other than create, update or delete.
	ErrUnknownDrawEvent = errors.New("unknown draw event")

	// ErrSessionClosed is returned when a discarded session is used.
	ErrSessionClosed = errors.New("authoring session is closed")
)

// Session is one open notification form. While the draft is geofenced a
// draw surface is mounted; while it is sent to everyone the globe view is
// shown and no surface exists.
type Session struct {
	ID string

	mu         sync.Mutex
	logger     *zap.Logger
	controller *notification.Controller
	engine     *mapengine.Headless
	surface    *drawsurface.Surface
	closed     bool

	// camera sequence reached by the previous surface
	cameraSeq uint64

	// guarded by the owning Registry
	lastUsed time.Time
}

func newSession(id string, controller *notification.Controller, logger *zap.Logger) (*Session, error) {
	s := &Session{
		ID:         id,
		logger:     logger.With(zap.String("draft", id)),
		controller: controller,
	}
	if controller.State() != notification.WorldwideSend {
		if err := s.mount(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// View returns the serializable state of the session.
func (s *Session) View() models.DraftView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Update applies a partial update of the plain form fields.
func (s *Session) Update(req *models.UpdateDraftRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if req.StartDate != nil {
		t, err := notification.ParseDate(*req.StartDate)
		if err != nil {
			return fmt.Errorf("startDate: %w", err)
		}
		s.controller.SetStartDate(t)
	}
	if req.EndDate != nil {
		t, err := notification.ParseDate(*req.EndDate)
		if err != nil {
			return fmt.Errorf("endDate: %w", err)
		}
		s.controller.SetEndDate(t)
	}
	if req.Title != nil {
		s.controller.SetTitle(*req.Title)
	}
	if req.Message != nil {
		s.controller.SetMessage(*req.Message)
	}
	if req.Roles != nil {
		s.controller.SetRoles(req.Roles)
	}
	return nil
}

// SetSendToAll switches between the globe view and the draw surface. The
// surface is torn down before a new one is mounted.
func (s *Session) SetSendToAll(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.controller.ToggleSendToAll(on)
	if on {
		return s.unmount()
	}
	if s.surface == nil {
		return s.mount()
	}
	return nil
}

// SetCoordinates stores the textual coordinate field and, when it parses,
// pushes the new geometry to the draw surface.
func (s *Session) SetCoordinates(text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	if s.surface == nil {
		return false, ErrGlobeView
	}

	area, ok := s.controller.SetCoordinateText(text)
	if !ok {
		return false, nil
	}
	return true, s.surface.SetArea(area)
}

// ReplaceArea swaps the drawn geometry for raw, the JSON coordinate string.
// Malformed input leaves an empty geofence.
func (s *Session) ReplaceArea(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.surface == nil {
		return ErrGlobeView
	}

	if err := s.surface.SetRawArea(raw); err != nil {
		return err
	}
	s.controller.OnGeometryChange(s.surface.Area())
	return nil
}

// ApplyDrawEvent forwards a draw control gesture to the surface.
func (s *Session) ApplyDrawEvent(kind string, features []*geojson.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.surface == nil {
		return ErrGlobeView
	}

	var err error
	switch kind {
	case models.DrawEventCreate:
		err = s.surface.HandleCreate(features)
	case models.DrawEventUpdate:
		err = s.surface.HandleUpdate(features)
	case models.DrawEventDelete:
		err = s.surface.HandleDelete(features)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDrawEvent, kind)
	}
	if err != nil {
		return err
	}
	metrics.DrawEventsTotal.WithLabelValues(kind).Inc()
	return nil
}

// Navigate moves the active polygon forward or backward and returns its index.
func (s *Session) Navigate(forward bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	if s.surface == nil {
		return 0, ErrGlobeView
	}

	if forward {
		return s.surface.Next(), nil
	}
	return s.surface.Previous(), nil
}

// Payload builds the notification payload without sending it.
func (s *Session) Payload() models.NotificationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Submit()
}

// SourceID returns the ID of the edited notification, empty for a new one.
func (s *Session) SourceID() string {
	return s.controller.SourceID()
}

// Close tears down the draw surface. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.unmount()
}

func (s *Session) mount() error {
	engine := mapengine.NewHeadless(s.logger, mapengine.WithStartSeq(s.cameraSeq))
	surface := drawsurface.New(engine, s.logger, s.controller.OnGeometryChange)
	if err := surface.Initialize(s.controller.Area()); err != nil {
		_ = surface.Close()
		return fmt.Errorf("failed to mount draw surface: %w", err)
	}
	s.engine = engine
	s.surface = surface
	return nil
}

func (s *Session) unmount() error {
	if s.surface == nil {
		return nil
	}
	err := s.surface.Close()
	s.cameraSeq = s.engine.Seq()
	s.surface = nil
	s.engine = nil
	return err
}

func (s *Session) view() models.DraftView {
	d := s.controller.Draft()
	v := models.DraftView{
		ID:             s.ID,
		NotificationID: s.controller.SourceID(),
		Title:          d.Title,
		Message:        d.Message,
		Roles:          notification.NormalizeRoles(d.Roles),
		SendToAll:      d.SendToAll,
		State:          s.controller.State().String(),
		CoordinateText: s.controller.CoordinateText(),
		ViewMode:       models.ViewModeGlobe,
	}
	if !d.SendToAll {
		v.Area = geometry.Encode(d.Area)
	}
	if !d.StartDate.IsZero() {
		v.StartDate = notification.FormatDate(d.StartDate)
	}
	if !d.EndDate.IsZero() {
		v.EndDate = notification.FormatDate(d.EndDate)
	}

	if s.surface != nil {
		snap := s.engine.Snapshot()
		v.ViewMode = models.ViewModeMap
		v.ActiveIndex = s.surface.ActiveIndex()
		v.PolygonCount = s.surface.Count()
		v.Camera = snap.Camera
		v.Markers = snap.Markers
		v.Features = s.surface.FeatureIDs()
	}
	return v
}
