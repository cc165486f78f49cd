// Package models contains the data models for the application.
package models

import (
	"encoding/json"
	"errors"

	"github.com/paulmach/orb"

	"github.com/geonotify/backend/internal/geometry"
)

// AreaType is the only geometry type a notification area can carry.
const AreaType = "MultiPolygon"

// Area is the GeoJSON-style geofence of a notification.
// Each polygon holds a single ring; holes are not supported.
type Area struct {
	Type        string           `json:"type"`
	Coordinates orb.MultiPolygon `json:"coordinates"`

	// Malformed is set when the received coordinates could not be decoded
	// and were replaced by the empty multi-polygon.
	Malformed bool `json:"-"`
}

// UnmarshalJSON decodes the coordinates through the geometry codec. Malformed
// coordinates do not fail the surrounding document; they decode as empty.
func (a *Area) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		*a = Area{Type: AreaType, Coordinates: orb.MultiPolygon{}, Malformed: true}
		return nil
	}

	a.Type = raw.Type
	if a.Type == "" {
		a.Type = AreaType
	}
	if string(raw.Coordinates) == "null" {
		a.Coordinates = orb.MultiPolygon{}
		a.Malformed = false
		return nil
	}
	mp, err := geometry.Decode(string(raw.Coordinates))
	if errors.Is(err, geometry.ErrMalformedGeometry) {
		a.Coordinates = orb.MultiPolygon{}
		a.Malformed = true
		return nil
	}
	a.Coordinates = mp
	a.Malformed = false
	return nil
}

// NewArea wraps a multi-polygon into its wire representation.
func NewArea(mp orb.MultiPolygon) *Area {
	if mp == nil {
		mp = orb.MultiPolygon{}
	}
	return &Area{Type: AreaType, Coordinates: mp}
}

// MultiPolygon returns the coordinates, or an empty multi-polygon for a nil area.
func (a *Area) MultiPolygon() orb.MultiPolygon {
	if a == nil || a.Coordinates == nil {
		return orb.MultiPolygon{}
	}
	return a.Coordinates
}

// Notification is a persisted notification as returned by the upstream API.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Area      *Area  `json:"area,omitempty"`
	Roles     []any  `json:"roles"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	SendToAll bool   `json:"sendToAll,omitempty"`
}

// NotificationPayload is the body sent on POST /notification and PUT /notification/{id}.
type NotificationPayload struct {
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Area      *Area    `json:"area,omitempty"`
	Roles     []string `json:"roles"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
}

// Role is a selectable audience for a notification.
type Role struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// NotificationResponse wraps a single notification in the API response.
type NotificationResponse struct {
	Data Notification `json:"data"`
}

// NotificationsResponse wraps multiple notifications in the API response.
type NotificationsResponse struct {
	Data []Notification `json:"data"`
}

// RolesResponse wraps the role list in the API response.
type RolesResponse struct {
	Data []Role `json:"data"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
