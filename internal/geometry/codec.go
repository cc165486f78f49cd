// Package geometry converts notification geofences between their
// multi-polygon form, the JSON coordinate string and the compact
// "lng,lat;lng,lat" text shown in the coordinate field.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// ErrMalformedGeometry is returned when a coordinate string cannot be parsed.
// Callers recover locally by treating the area as empty.
var ErrMalformedGeometry = errors.New("malformed geometry")

// minRingPoints is three distinct vertices plus the closing point.
const minRingPoints = 4

// Decode parses a JSON array of polygons of rings of [lng, lat] pairs.
// An empty string and "[]" both decode to the empty multi-polygon.
func Decode(raw string) (orb.MultiPolygon, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return orb.MultiPolygon{}, nil
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: coordinates must be a JSON array", ErrMalformedGeometry)
	}

	var coords [][][][]float64
	if err := json.Unmarshal([]byte(raw), &coords); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
	}

	mp := make(orb.MultiPolygon, 0, len(coords))
	for i, polygon := range coords {
		p := make(orb.Polygon, 0, len(polygon))
		for j, ring := range polygon {
			if len(ring) > 0 && len(ring) < minRingPoints {
				return nil, fmt.Errorf("%w: polygon %d ring %d has %d points", ErrMalformedGeometry, i, j, len(ring))
			}
			r := make(orb.Ring, 0, len(ring))
			for k, pair := range ring {
				if len(pair) != 2 {
					return nil, fmt.Errorf("%w: polygon %d ring %d point %d is not a [lng, lat] pair", ErrMalformedGeometry, i, j, k)
				}
				r = append(r, orb.Point{pair[0], pair[1]})
			}
			p = append(p, r)
		}
		mp = append(mp, p)
	}
	return mp, nil
}

// DecodeOrEmpty decodes raw and downgrades a malformed input to the empty
// multi-polygon, logging the failure.
func DecodeOrEmpty(raw string, logger *zap.Logger) orb.MultiPolygon {
	mp, err := Decode(raw)
	if err != nil {
		logger.Warn("Discarding malformed geometry", zap.Error(err))
		return orb.MultiPolygon{}
	}
	return mp
}

// Encode serializes mp to the same JSON structure Decode reads.
func Encode(mp orb.MultiPolygon) string {
	if len(mp) == 0 {
		return "[]"
	}
	data, err := json.Marshal(mp)
	if err != nil {
		// orb points are plain float pairs; only NaN/Inf can get here.
		return "[]"
	}
	return string(data)
}

// FirstRingSummary renders the first ring of the first polygon as
// "lng,lat;lng,lat;...". Every other polygon and ring is dropped.
func FirstRingSummary(mp orb.MultiPolygon) string {
	if len(mp) == 0 || len(mp[0]) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(mp[0][0]))
	for _, pt := range mp[0][0] {
		pairs = append(pairs, formatFloat(pt.Lon())+","+formatFloat(pt.Lat()))
	}
	return strings.Join(pairs, ";")
}

// ParseRingSummary reads the text produced by FirstRingSummary back into a
// single-ring polygon. An open ring is closed.
func ParseRingSummary(text string) (orb.Polygon, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty coordinate text", ErrMalformedGeometry)
	}

	var ring orb.Ring
	for i, pair := range strings.Split(text, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: entry %d %q is not lng,lat", ErrMalformedGeometry, i, pair)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d longitude: %v", ErrMalformedGeometry, i, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d latitude: %v", ErrMalformedGeometry, i, err)
		}
		ring = append(ring, orb.Point{lng, lat})
	}

	if distinctVertices(ring) < 3 {
		return nil, fmt.Errorf("%w: a polygon needs at least 3 distinct vertices", ErrMalformedGeometry)
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}

// Bounds returns the union of every polygon's bounding box.
func Bounds(mp orb.MultiPolygon) (orb.Bound, bool) {
	if len(mp) == 0 {
		return orb.Bound{}, false
	}
	return mp.Bound(), true
}

// Equal reports whether a and b hold exactly the same coordinates.
func Equal(a, b orb.MultiPolygon) bool {
	return orb.Equal(normalize(a), normalize(b))
}

// Clone returns a deep copy so callers never share backing arrays.
func Clone(mp orb.MultiPolygon) orb.MultiPolygon {
	if mp == nil {
		return orb.MultiPolygon{}
	}
	return mp.Clone()
}

func normalize(mp orb.MultiPolygon) orb.MultiPolygon {
	if mp == nil {
		return orb.MultiPolygon{}
	}
	return mp
}

// ValidRing reports whether r can bound a polygon: at least four points
// spanning three distinct vertices.
func ValidRing(r orb.Ring) bool {
	return len(r) >= minRingPoints && distinctVertices(r) >= 3
}

func distinctVertices(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, pt := range ring {
		seen[pt] = struct{}{}
	}
	return len(seen)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
