package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/geonotify/backend/internal/models"
)

// ErrInvalidDate is returned for a date in none of the accepted layouts.
var ErrInvalidDate = errors.New("invalid date")

// dateLayout is ISO-8601 in UTC with millisecond precision.
const dateLayout = "2006-01-02T15:04:05.000Z"

// FormatDate renders t the way the upstream API stores dates.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate reads an ISO-8601 date. An empty string is the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, value)
}

// NormalizeRoles turns role references into bare role IDs. A reference is a
// raw ID string or a role object with an "id" field; anything that does not
// yield a non-empty string is dropped.
func NormalizeRoles(refs []any) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := roleID(ref); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func roleID(ref any) string {
	switch v := ref.(type) {
	case string:
		return v
	case models.Role:
		return v.ID
	case *models.Role:
		if v == nil {
			return ""
		}
		return v.ID
	case map[string]any:
		id, _ := v["id"].(string)
		return id
	case map[string]string:
		return v["id"]
	default:
		return ""
	}
}
