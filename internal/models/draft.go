package models

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Draw event kinds emitted by the browser-side draw control.
const (
	DrawEventCreate = "create"
	DrawEventUpdate = "update"
	DrawEventDelete = "delete"
)

// View modes of a draft's geometry editor.
const (
	ViewModeMap   = "map"
	ViewModeGlobe = "globe"
)

// CreateDraftRequest opens a draft, hydrated from an existing notification when NotificationID is set.
type CreateDraftRequest struct {
	NotificationID string `json:"notificationId"`
}

// UpdateDraftRequest represents a partial update of the plain form fields.
type UpdateDraftRequest struct {
	Title     *string `json:"title,omitempty" binding:"omitempty,max=256"`
	Message   *string `json:"message,omitempty" binding:"omitempty,max=2048"`
	Roles     []any   `json:"roles,omitempty"`
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
}

// SendToAllRequest toggles worldwide delivery.
type SendToAllRequest struct {
	SendToAll *bool `json:"sendToAll" binding:"required"`
}

// CoordinatesRequest carries the textual "lng,lat;lng,lat" coordinate field.
type CoordinatesRequest struct {
	Text string `json:"text"`
}

// AreaRequest replaces the drawn geometry from outside the draw surface.
type AreaRequest struct {
	Raw string `json:"raw"`
}

// DrawEventRequest forwards a create/update/delete gesture of the draw control.
type DrawEventRequest struct {
	Kind     string                    `json:"kind" binding:"required,oneof=create update delete"`
	Features geojson.FeatureCollection `json:"features"`
}

// NavigateRequest moves the active polygon.
type NavigateRequest struct {
	Direction string `json:"direction" binding:"required,oneof=next previous"`
}

// Camera is the viewport the browser should transition to.
// Seq grows with every fit so the client can drop stale transitions.
type Camera struct {
	Seq   uint64    `json:"seq"`
	Bound orb.Bound `json:"bound"`
}

// Marker is a point shown on top of the drawn polygons.
type Marker struct {
	ID    string    `json:"id"`
	Point orb.Point `json:"point"`
}

// DraftView is the serializable state of one authoring session.
type DraftView struct {
	ID             string   `json:"id"`
	NotificationID string   `json:"notificationId,omitempty"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	Roles          []string `json:"roles"`
	StartDate      string   `json:"startDate,omitempty"`
	EndDate        string   `json:"endDate,omitempty"`
	SendToAll      bool     `json:"sendToAll"`
	State          string   `json:"state"`
	Area           string   `json:"area"`
	CoordinateText string   `json:"coordinateText"`
	ViewMode       string   `json:"viewMode"`
	ActiveIndex    int      `json:"activeIndex"`
	PolygonCount   int      `json:"polygonCount"`
	Camera         *Camera  `json:"camera,omitempty"`
	Markers        []Marker `json:"markers,omitempty"`
	Features       []string `json:"features,omitempty"`
}

// DraftResponse wraps a single draft view in the API response.
type DraftResponse struct {
	Data DraftView `json:"data"`
}

// PayloadResponse wraps a constructed notification payload.
type PayloadResponse struct {
	Data NotificationPayload `json:"data"`
}
