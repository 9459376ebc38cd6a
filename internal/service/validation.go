package service

import (
	"strings"
	"time"

	"campusboard/internal/models"
)

// fieldErrors collects per-field complaints in the order they were found.
type fieldErrors []models.FieldError

func (f *fieldErrors) add(field string, err error) {
	if err != nil {
		*f = append(*f, models.FieldError{Field: field, Message: err.Error()})
	}
}

func (f *fieldErrors) addMessage(field, message string) {
	*f = append(*f, models.FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return models.NewFieldsValidationError(f)
}

var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseTimestamp accepts RFC 3339 timestamps and plain dates. Results are UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
