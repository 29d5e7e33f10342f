// Package format turns raw form values into the strings drawn on the page.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wudi/pdfoverlay/schema"
)

// FormatError reports a value that could not be parsed for display.
type FormatError struct {
	Input string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format %q: %v", e.Input, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var errLayout = errors.New("not a local date-time")

// Layouts accepted from an HTML datetime-local control.
var dateTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// ParseDateTime parses a local date-time without zone. The result is in UTC
// only as a carrier; no zone conversion is applied.
func ParseDateTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &FormatError{Input: raw, Err: errLayout}
}

// DateTime renders "2024-03-05T08:07" as "5/3/24 - 08:07hs": day and month
// unpadded, two-digit year, zero-padded 24h time. Malformed input is
// returned unchanged.
func DateTime(raw string) string {
	t, err := ParseDateTime(raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%d/%d/%02d - %02d:%02dhs", t.Day(), int(t.Month()), t.Year()%100, t.Hour(), t.Minute())
}

// Date renders "2024-03-05" as "5/3/24". Malformed input is returned
// unchanged.
func Date(raw string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%d/%d/%02d", t.Day(), int(t.Month()), t.Year()%100)
}

// Text passes plain values through.
func Text(v string) string { return v }

// Value formats raw according to the schema field kind.
func Value(kind schema.FieldKind, raw string) string {
	switch kind {
	case schema.KindDateTimeLocal:
		return DateTime(raw)
	case schema.KindDate:
		return Date(raw)
	default:
		return Text(raw)
	}
}
