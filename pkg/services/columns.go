package services

import (
	"strings"

	"go.uber.org/zap"
)

// standardSynonyms maps vendor header spellings in the standard dialect onto
// canonical field names. Unmapped headers pass through unchanged.
var standardSynonyms = map[string]string{
	"anumber":        "a_number",
	"caller":         "a_number",
	"calling":        "a_number",
	"calling_number": "a_number",
	"calling number": "a_number",
	"msisdn_a":       "a_number",
	"a_party":        "a_number",
	"a party":        "a_number",

	"bnumber":       "b_number",
	"called":        "b_number",
	"called_number": "b_number",
	"called number": "b_number",
	"msisdn_b":      "b_number",
	"b_party":       "b_number",

	"cnumber": "c_number",

	"calltype":  "call_type",
	"call type": "call_type",
	"type":      "call_type",

	"datetime":   "date",
	"call_date":  "date",
	"call date":  "date",
	"timestamp":  "date",
	"start_time": "date",
	"start time": "date",

	"duration":      "duration_seconds",
	"call_duration": "duration_seconds",
	"call duration": "duration_seconds",
	"dur(s)":        "duration_seconds",
	"duration(s)":   "duration_seconds",

	"imei":      "device_id",
	"imei_type": "device_type",
	"imei type": "device_type",
	"imsi":      "subscriber_id",

	"lac_ci":  "location_id",
	"lac-ci":  "location_id",
	"lac ci":  "location_id",
	"cell_id": "location_id",
	"cellid":  "location_id",

	"sitename":  "site_name",
	"site name": "site_name",

	"lat":  "latitude",
	"long": "longitude",
	"lon":  "longitude",
}

// detailedSynonyms maps detailed-dialect headers (after the "% " prefix is
// stripped) onto the canonical field set, renaming B-side device/location
// columns into a b_-prefixed sibling set alongside the A-side names.
var detailedSynonyms = map[string]string{
	"a number": "a_number",
	"b number": "b_number",
	"c number": "c_number",

	"calltype":  "call_type",
	"call type": "call_type",

	"date":     "date",
	"time":     "time",
	"duration": "duration_seconds",

	"imei":      "device_id",
	"imei type": "device_type",
	"imei_type": "device_type",
	"imsi":      "subscriber_id",

	"lac-ci":       "location_id",
	"lac ci":       "location_id",
	"lac_ci":       "location_id",
	"first lac-ci": "location_id",

	"sitename":  "site_name",
	"site name": "site_name",

	"lat":  "latitude",
	"long": "longitude",

	"b imei":      "b_device_id",
	"b imsi":      "b_subscriber_id",
	"b lac-ci":    "b_location_id",
	"b lac ci":    "b_location_id",
	"b sitename":  "b_site_name",
	"b site name": "b_site_name",
}

// ColumnNormalizer maps detected headers onto the canonical field set.
type ColumnNormalizer struct {
	logger *zap.Logger
}

// NewColumnNormalizer creates a new column normalizer.
func NewColumnNormalizer(logger *zap.Logger) *ColumnNormalizer {
	return &ColumnNormalizer{logger: logger}
}

// Normalize rewrites the table headers in place according to the schema's
// synonym table. For the detailed dialect it also cleans the number columns:
// a_number loses a leading "+", b_number loses a leading "+62" country
// prefix (else a leading "+").
func (n *ColumnNormalizer) Normalize(t *Table, schema Schema) {
	before := make([]string, len(t.Headers))
	copy(before, t.Headers)

	switch schema {
	case SchemaDetailed:
		for i, h := range t.Headers {
			key := strings.TrimSpace(strings.TrimPrefix(h, "% "))
			if canonical, ok := detailedSynonyms[key]; ok {
				t.Headers[i] = canonical
			} else {
				t.Headers[i] = key
			}
		}
		n.cleanDetailedNumbers(t)
	default:
		for i, h := range t.Headers {
			if canonical, ok := standardSynonyms[h]; ok {
				t.Headers[i] = canonical
			}
		}
	}

	n.logger.Debug("normalized columns",
		zap.String("schema", string(schema)),
		zap.Strings("before", before),
		zap.Strings("after", t.Headers))
}

func (n *ColumnNormalizer) cleanDetailedNumbers(t *Table) {
	aIdx := t.Index("a_number")
	bIdx := t.Index("b_number")
	for _, row := range t.Rows {
		if aIdx >= 0 && aIdx < len(row) {
			row[aIdx] = strings.TrimPrefix(strings.TrimSpace(row[aIdx]), "+")
		}
		if bIdx >= 0 && bIdx < len(row) {
			b := strings.TrimSpace(row[bIdx])
			if strings.HasPrefix(b, "+62") {
				b = strings.TrimPrefix(b, "+62")
			} else {
				b = strings.TrimPrefix(b, "+")
			}
			row[bIdx] = b
		}
	}
}
