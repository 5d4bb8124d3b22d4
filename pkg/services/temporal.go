package services

import (
	"math"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
)

// serialEpoch is the spreadsheet serial-date epoch (1899-12-30). Serial
// values count days since this instant, fractions encoding time of day.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// detailedPatterns are the combined date+time layouts for the detailed
// dialect, tried in order. A pattern is accepted only when every non-empty
// value parses under it.
var detailedPatterns = []string{
	"02/Jan/06 15:04:05",
	"02/Jan/2006 15:04:05",
	"02-Jan-06 15:04:05",
	"02-Jan-2006 15:04:05",
}

// standardFallbackPatterns are tried, in order, only when auto-detection
// fails for every row of a standard-dialect date column.
var standardFallbackPatterns = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
	"20060102150405",
	"02-Jan-2006 15:04:05",
}

// TemporalNormalizer converts per-dialect date/time representations into one
// canonical timestamp column.
type TemporalNormalizer struct {
	logger *zap.Logger
}

// NewTemporalNormalizer creates a new temporal normalizer.
func NewTemporalNormalizer(logger *zap.Logger) *TemporalNormalizer {
	return &TemporalNormalizer{logger: logger}
}

// Normalize parses the date (and, for the detailed dialect, time) column into
// per-row timestamps, renames the date header to "timestamp" and drops the
// time column. The returned slice is aligned with t.Rows; nil entries mark
// rows whose date could not be parsed (they are dropped at validation, not
// here). Returns a FormatError carrying the unparseable-row count when no
// strategy parses the column at all.
func (n *TemporalNormalizer) Normalize(t *Table, schema Schema) ([]*time.Time, error) {
	times := make([]*time.Time, len(t.Rows))

	dateIdx := t.Index("date")
	if dateIdx < 0 {
		// Missing date column surfaces as a SchemaError at validation.
		return times, nil
	}
	timeIdx := t.Index("time")

	values := make([]string, len(t.Rows))
	for i := range t.Rows {
		v := t.Cell(i, dateIdx)
		if schema == SchemaDetailed && timeIdx >= 0 {
			if tv := t.Cell(i, timeIdx); tv != "" {
				v = v + " " + tv
			}
		}
		values[i] = v
	}

	var parsed []*time.Time
	var err error
	if serialColumn(values) {
		parsed = parseSerial(values)
	} else if schema == SchemaDetailed {
		parsed, err = parsePatterns(values, detailedPatterns)
	} else {
		parsed, err = n.parseStandard(values)
	}
	if err != nil {
		return nil, err
	}

	copy(times, parsed)
	t.Rename("date", "timestamp")
	t.DropColumn("time")

	return times, nil
}

// serialColumn reports whether every non-empty value is numeric, in which
// case the column holds spreadsheet serial dates.
func serialColumn(values []string) bool {
	seen := false
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseSerial(values []string) []*time.Time {
	out := make([]*time.Time, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		days, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		sec := math.Round(days * 86400)
		ts := serialEpoch.Add(time.Duration(sec) * time.Second)
		out[i] = &ts
	}
	return out
}

// parsePatterns tries each explicit layout in order and accepts the first
// one under which zero non-empty values fail. When every layout is rejected
// it returns a FormatError counting the rows no layout could parse.
func parsePatterns(values []string, patterns []string) ([]*time.Time, error) {
	failedAll := make([]bool, len(values))
	for i, v := range values {
		failedAll[i] = v != ""
	}

	for _, pattern := range patterns {
		out := make([]*time.Time, len(values))
		ok := true
		for i, v := range values {
			if v == "" {
				continue
			}
			ts, err := time.Parse(pattern, v)
			if err != nil {
				ok = false
				continue
			}
			failedAll[i] = false
			out[i] = &ts
		}
		if ok {
			return out, nil
		}
	}

	count := 0
	for _, failed := range failedAll {
		if failed {
			count++
		}
	}
	return nil, &apperrors.FormatError{
		Msg:             "date column does not match any supported format",
		UnparseableRows: count,
	}
}

// parseStandard attempts an unambiguous auto-detected parse of each value.
// Only when auto-detection fails for every row does it retry the explicit
// fallback layouts. Rows auto-detection cannot parse while others succeed
// stay nil and fall out at validation.
func (n *TemporalNormalizer) parseStandard(values []string) ([]*time.Time, error) {
	out := make([]*time.Time, len(values))
	succeeded := 0
	for i, v := range values {
		if v == "" {
			continue
		}
		ts, err := dateparse.ParseStrict(v)
		if err != nil {
			continue
		}
		out[i] = &ts
		succeeded++
	}
	if succeeded > 0 {
		return out, nil
	}

	n.logger.Debug("auto-detected date parse failed for every row, trying fallback patterns")
	return parsePatterns(values, standardFallbackPatterns)
}
