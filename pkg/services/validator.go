package services

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

// requiredColumns are the canonical columns every normalized table must
// carry before validation can run.
var requiredColumns = []string{"call_type", "a_number", "b_number", "timestamp", "duration_seconds"}

// minIdentifierLen is the minimum accepted length for party identifiers.
// Anything shorter is a switch artifact, not a subscriber number.
const minIdentifierLen = 4

// RecordValidator turns a normalized table into canonical records, enforcing
// required-field presence, the B-number denylist, and the relaxed rules for
// data sessions.
type RecordValidator struct {
	denylist map[string]struct{}
	logger   *zap.Logger
}

// NewRecordValidator creates a validator with the given B-number denylist.
// The denylist is policy: the set of never-legitimate destinations varies
// between operator feeds.
func NewRecordValidator(invalidBNumbers []string, logger *zap.Logger) *RecordValidator {
	denylist := make(map[string]struct{}, len(invalidBNumbers))
	for _, n := range invalidBNumbers {
		denylist[n] = struct{}{}
	}
	return &RecordValidator{denylist: denylist, logger: logger}
}

// Validate checks the table and returns the surviving canonical records.
// timestamps is the per-row output of the temporal normalizer; nil entries
// mark rows whose date never parsed.
func (v *RecordValidator) Validate(t *Table, timestamps []*time.Time) ([]models.CDRRecord, error) {
	var missing []string
	for _, col := range requiredColumns {
		if t.Index(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &apperrors.SchemaError{MissingColumns: missing}
	}

	col := func(name string) int { return t.Index(name) }
	callTypeIdx := col("call_type")
	aIdx := col("a_number")
	bIdx := col("b_number")
	durIdx := col("duration_seconds")
	cIdx := col("c_number")
	deviceIdx := col("device_id")
	deviceTypeIdx := col("device_type")
	subscriberIdx := col("subscriber_id")
	locationIdx := col("location_id")
	siteIdx := col("site_name")
	directionIdx := col("direction")
	latIdx := col("latitude")
	lonIdx := col("longitude")

	dropped := 0
	records := make([]models.CDRRecord, 0, len(t.Rows))
	for i := range t.Rows {
		rec := models.CDRRecord{
			CallType:     t.Cell(i, callTypeIdx),
			ANumber:      t.Cell(i, aIdx),
			BNumber:      t.Cell(i, bIdx),
			CNumber:      t.Cell(i, cIdx),
			Duration:     coerceDuration(t.Cell(i, durIdx)),
			DeviceID:     t.Cell(i, deviceIdx),
			DeviceType:   t.Cell(i, deviceTypeIdx),
			SubscriberID: t.Cell(i, subscriberIdx),
			LocationID:   t.Cell(i, locationIdx),
			SiteName:     t.Cell(i, siteIdx),
			Direction:    t.Cell(i, directionIdx),
			Latitude:     t.Cell(i, latIdx),
			Longitude:    t.Cell(i, lonIdx),
		}

		// Data sessions legitimately have no B-party, so the denylist
		// does not apply to them.
		if !rec.IsGPRS() {
			if _, denied := v.denylist[rec.BNumber]; denied {
				dropped++
				continue
			}
		}

		if rec.IsGPRS() {
			if len(rec.ANumber) < minIdentifierLen || timestamps[i] == nil {
				dropped++
				continue
			}
		} else {
			if rec.CallType == "" || rec.BNumber == "" || timestamps[i] == nil ||
				len(rec.ANumber) < minIdentifierLen || len(rec.BNumber) < minIdentifierLen {
				dropped++
				continue
			}
		}

		if rec.Duration < 0 {
			dropped++
			continue
		}

		rec.Timestamp = *timestamps[i]
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &apperrors.ValidationError{Msg: "no valid records"}
	}

	if dropped > 0 {
		v.logger.Debug("dropped invalid rows", zap.Int("dropped", dropped), zap.Int("kept", len(records)))
	}

	return records, nil
}

// coerceDuration strips colon characters (a legacy H:M:S-as-string artifact)
// and parses the remainder as an integer. Malformed durations become zero;
// a bad duration never rejects a row.
func coerceDuration(raw string) int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ":", "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}
