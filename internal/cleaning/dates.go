package cleaning

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"basiccleaning/internal/dataset"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// extra layouts tried after cast's own list
var fallbackLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// NormalizeDates parses every value of column as a date and rewrites the
// column in a single rendering: a plain date when every parsed value falls
// on midnight, a date and time otherwise. Values that do not parse become
// null (an empty cell); no row is ever removed. It returns how many
// non-empty values could not be parsed.
func NormalizeDates(t *dataset.Table, column string) (unparsed int, err error) {
	values, err := t.Column(column)
	if err != nil {
		return 0, err
	}

	parsed := make([]time.Time, len(values))
	valid := make([]bool, len(values))
	dateOnly := true

	for i, raw := range values {
		ts, ok := parseDate(raw)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				unparsed++
			}
			continue
		}
		parsed[i], valid[i] = ts, true
		if !isMidnight(ts) {
			dateOnly = false
		}
	}

	layout := dateLayout
	if !dateOnly {
		layout = dateTimeLayout
	}

	out := make([]string, len(values))
	for i := range values {
		if valid[i] {
			out[i] = parsed[i].Format(layout)
		}
	}

	if err := t.SetColumn(column, out); err != nil {
		return 0, err
	}
	return unparsed, nil
}

// parseDate interprets raw as a point in time, normalised to UTC. Values
// without a zone are read as UTC.
func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if ts, err := cast.ToTimeInDefaultLocationE(s, time.UTC); err == nil {
		return ts.UTC(), true
	}
	for _, layout := range fallbackLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func isMidnight(ts time.Time) bool {
	h, m, s := ts.Clock()
	return h == 0 && m == 0 && s == 0 && ts.Nanosecond() == 0
}
