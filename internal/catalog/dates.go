package catalog

import (
	"strings"
	"time"

	"github.com/tometrove/tometrove/internal/errors"
)

// StorageLayout is how dates are written: microseconds and a numeric offset.
const StorageLayout = "2006-01-02T15:04:05.000000-07:00"

// Accepted input layouts, tried in order. Layouts with a zone come first;
// the rest are read in the local zone. A fractional second after the
// seconds field is accepted by every layout that has seconds.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// FormatDate renders t for storage.
func FormatDate(t time.Time) string {
	return t.Format(StorageLayout)
}

// ParseDate reads any accepted date form.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Validationf("unrecognised date %q", s)
}

// NormalizeDate converts raw patch text to the storage form.
func NormalizeDate(raw string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}
