// Package notification holds the single source of truth for one
// notification draft and turns it into the payload the upstream API expects.
package notification

import (
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/geometry"
	"github.com/geonotify/backend/internal/metrics"
	"github.com/geonotify/backend/internal/models"
)

// DefaultHorizon is how long a notification stays live when no end date is given.
const DefaultHorizon = 7 * 24 * time.Hour

// State describes the geometry side of a draft.
type State int

const (
	// NoGeofenceYet means the area is present but nothing has been drawn.
	NoGeofenceYet State = iota
	// Geofenced means at least one polygon is drawn.
	Geofenced
	// WorldwideSend means the notification goes to everyone and carries no area.
	WorldwideSend
)

func (s State) String() string {
	switch s {
	case Geofenced:
		return "geofenced"
	case WorldwideSend:
		return "worldwide"
	default:
		return "no_geofence"
	}
}

// Draft is the in-memory form state of a notification being created or edited.
// Area is nil exactly when SendToAll is set.
type Draft struct {
	Title     string
	Message   string
	Area      orb.MultiPolygon
	Roles     []any
	StartDate time.Time
	EndDate   time.Time
	SendToAll bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the clock used for date defaults.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller mutates a Draft and reconciles it with the drawn geometry.
// It is not safe for concurrent use.
type Controller struct {
	logger *zap.Logger
	now    func() time.Time

	draft          Draft
	sourceID       string
	sourceArea     orb.MultiPolygon
	retained       orb.MultiPolygon
	coordinateText string
}

// New returns a controller for a brand new notification.
func New(logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		logger: logger,
		now:    time.Now,
		draft:  Draft{Area: orb.MultiPolygon{}, Roles: []any{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromNotification returns a controller hydrated from a persisted notification.
// A notification without an area was sent to everyone.
func FromNotification(n *models.Notification, logger *zap.Logger, opts ...Option) *Controller {
	c := New(logger, opts...)
	c.sourceID = n.ID
	c.draft.Title = n.Title
	c.draft.Message = n.Message
	c.draft.Roles = append([]any{}, n.Roles...)
	c.draft.StartDate = c.hydrateDate("startDate", n.StartDate)
	c.draft.EndDate = c.hydrateDate("endDate", n.EndDate)

	if n.Area != nil && n.Area.Malformed {
		c.logger.Warn("Notification area is malformed, treating it as empty", zap.String("id", n.ID))
		metrics.MalformedGeometryTotal.Inc()
	}
	c.sourceArea = geometry.Clone(n.Area.MultiPolygon())

	if n.SendToAll || n.Area == nil {
		c.draft.SendToAll = true
		c.draft.Area = nil
		return c
	}

	c.draft.Area = geometry.Clone(c.sourceArea)
	c.coordinateText = geometry.FirstRingSummary(c.draft.Area)
	return c
}

// SourceID returns the ID of the notification being edited, empty for a new one.
func (c *Controller) SourceID() string {
	return c.sourceID
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() Draft {
	d := c.draft
	if d.Area != nil {
		d.Area = geometry.Clone(d.Area)
	}
	d.Roles = append([]any{}, d.Roles...)
	return d
}

// State returns the geometry state of the draft.
func (c *Controller) State() State {
	switch {
	case c.draft.SendToAll:
		return WorldwideSend
	case len(c.draft.Area) > 0:
		return Geofenced
	default:
		return NoGeofenceYet
	}
}

// Area returns a copy of the draft's area, or nil while sending to everyone.
func (c *Controller) Area() orb.MultiPolygon {
	if c.draft.SendToAll {
		return nil
	}
	return geometry.Clone(c.draft.Area)
}

// CoordinateText returns the cached "lng,lat;..." text of the first polygon.
func (c *Controller) CoordinateText() string {
	return c.coordinateText
}

// SetTitle sets the notification title.
func (c *Controller) SetTitle(title string) {
	c.draft.Title = title
}

// SetMessage sets the notification body.
func (c *Controller) SetMessage(message string) {
	c.draft.Message = message
}

// SetRoles replaces the selected roles. Entries are normalized on submit.
func (c *Controller) SetRoles(roles []any) {
	c.draft.Roles = append([]any{}, roles...)
}

// SetStartDate sets the start of the delivery window. A zero time unsets it.
func (c *Controller) SetStartDate(t time.Time) {
	c.draft.StartDate = t
}

// SetEndDate sets the end of the delivery window. A zero time unsets it.
func (c *Controller) SetEndDate(t time.Time) {
	c.draft.EndDate = t
}

// ToggleSendToAll switches between worldwide delivery and a geofence and
// returns the area the geometry editor should show.
//
// Turning it on keeps the current geometry aside. Turning it off restores
// that geometry verbatim, or the edited notification's own area when
// nothing was kept.
func (c *Controller) ToggleSendToAll(on bool) orb.MultiPolygon {
	if on {
		c.coordinateText = ""
		if !c.draft.SendToAll {
			c.retained = geometry.Clone(c.draft.Area)
			c.draft.Area = nil
			c.draft.SendToAll = true
		}
		return nil
	}

	if c.draft.SendToAll {
		var restore orb.MultiPolygon
		switch {
		case len(c.retained) > 0:
			restore = c.retained
		case len(c.sourceArea) > 0:
			restore = c.sourceArea
		}
		c.draft.Area = geometry.Clone(restore)
		c.draft.SendToAll = false
		c.retained = nil
		c.coordinateText = geometry.FirstRingSummary(c.draft.Area)
		c.logger.Debug("Restored geometry after worldwide send", zap.Int("polygons", len(c.draft.Area)))
	}
	return geometry.Clone(c.draft.Area)
}

// OnGeometryChange records geometry reported by the draw surface.
func (c *Controller) OnGeometryChange(area orb.MultiPolygon) {
	if c.draft.SendToAll {
		c.logger.Debug("Ignoring geometry change during worldwide send")
		return
	}
	c.draft.Area = geometry.Clone(area)
	c.coordinateText = geometry.FirstRingSummary(c.draft.Area)
}

// SetCoordinateText stores text typed into the coordinate field. When it
// parses, the first polygon is replaced and the new area is returned so the
// draw surface can follow. Unparsable text leaves the geometry untouched.
func (c *Controller) SetCoordinateText(text string) (orb.MultiPolygon, bool) {
	if c.draft.SendToAll {
		return nil, false
	}
	c.coordinateText = text

	poly, err := geometry.ParseRingSummary(text)
	if err != nil {
		c.logger.Warn("Ignoring unparsable coordinate text", zap.Error(err))
		return nil, false
	}

	area := geometry.Clone(c.draft.Area)
	if len(area) == 0 {
		area = append(area, poly)
	} else {
		area[0] = poly
	}
	c.draft.Area = area
	return geometry.Clone(area), true
}

// Submit builds the outbound payload. Missing dates default to now and
// now plus DefaultHorizon; worldwide drafts carry no area.
func (c *Controller) Submit() models.NotificationPayload {
	now := c.now()

	start := c.draft.StartDate
	if start.IsZero() {
		start = now
	}
	end := c.draft.EndDate
	if end.IsZero() {
		end = now.Add(DefaultHorizon)
	}

	payload := models.NotificationPayload{
		Title:     c.draft.Title,
		Message:   c.draft.Message,
		Roles:     NormalizeRoles(c.draft.Roles),
		StartDate: FormatDate(start),
		EndDate:   FormatDate(end),
	}
	if !c.draft.SendToAll {
		payload.Area = models.NewArea(geometry.Clone(c.draft.Area))
	}
	return payload
}

func (c *Controller) hydrateDate(field, value string) time.Time {
	t, err := ParseDate(value)
	if err != nil {
		c.logger.Warn("Ignoring unparsable date", zap.String("field", field), zap.String("value", value), zap.Error(err))
		return time.Time{}
	}
	return t
}
