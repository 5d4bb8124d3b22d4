package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
)

// Schema identifies which logical header dialect a file uses.
type Schema string

const (
	// SchemaStandard is the pipe/comma-delimited operator export with
	// anumber/bnumber/date/duration headers (or recognized synonyms).
	SchemaStandard Schema = "standard"
	// SchemaDetailed is the vendor export with "% "-prefixed headers and
	// separate date and time columns.
	SchemaDetailed Schema = "detailed"
)

// Table is a detected tabular payload. Headers are lower-cased and trimmed;
// rows are raw cell strings, padded or truncated to the header width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Index returns the position of a header, or -1 when absent.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// HasHeader reports whether any of the given header names is present.
func (t *Table) HasHeader(names ...string) bool {
	for _, name := range names {
		if t.Index(name) >= 0 {
			return true
		}
	}
	return false
}

// Rename changes a header in place. A no-op when the header is absent.
func (t *Table) Rename(from, to string) {
	if i := t.Index(from); i >= 0 {
		t.Headers[i] = to
	}
}

// DropColumn removes a column from the headers and from every row.
func (t *Table) DropColumn(name string) {
	i := t.Index(name)
	if i < 0 {
		return
	}
	t.Headers = append(t.Headers[:i], t.Headers[i+1:]...)
	for r, row := range t.Rows {
		t.Rows[r] = append(row[:i], row[i+1:]...)
	}
}

// Cell returns the trimmed value at (row, column index), or "" when the
// column is missing from that row.
func (t *Table) Cell(row int, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// DialectDetector determines a file's physical dialect (spreadsheet vs
// delimited text, delimiter, encoding) and its logical schema variant.
type DialectDetector struct {
	logger *zap.Logger
}

// NewDialectDetector creates a new dialect detector.
func NewDialectDetector(logger *zap.Logger) *DialectDetector {
	return &DialectDetector{logger: logger}
}

// textEncodings is the fixed list of encodings attempted for delimited text,
// in order. latin1 and iso-8859-1 are aliases but both appear in operator
// documentation, so both stay on the list.
var textEncodings = []struct {
	name    string
	charmap *charmap.Charmap
}{
	{"utf-8", nil},
	{"latin1", charmap.ISO8859_1},
	{"iso-8859-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
}

// delimiters attempted for text payloads, in order.
var delimiters = []rune{',', '|'}

// Detect parses raw bytes into a Table and classifies its schema variant.
// Spreadsheet parsing is attempted first; on failure every
// delimiter/encoding combination is tried, accepting the first that yields
// more than one column. Returns a FormatError when nothing tabular can be
// extracted.
func (d *DialectDetector) Detect(content []byte, filename string) (*Table, Schema, error) {
	table, err := d.parseSpreadsheet(content)
	if err != nil {
		d.logger.Debug("spreadsheet parse failed, trying delimited text",
			zap.String("filename", filename),
			zap.String("extension", filepath.Ext(filename)),
			zap.Error(err))
		table = d.parseDelimited(content)
	}
	if table == nil {
		return nil, "", &apperrors.FormatError{
			Msg: fmt.Sprintf("file %q is not a readable spreadsheet or delimited table in any supported encoding", filename),
		}
	}

	normalizeHeaders(table)
	schema := classifySchema(table)

	d.logger.Debug("detected table",
		zap.String("filename", filename),
		zap.String("schema", string(schema)),
		zap.Int("columns", len(table.Headers)),
		zap.Int("rows", len(table.Rows)))

	return table, schema, nil
}

// parseSpreadsheet attempts to read the payload as an xlsx workbook,
// using the first sheet.
func (d *DialectDetector) parseSpreadsheet(content []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 || len(rows[0]) <= 1 {
		return nil, fmt.Errorf("sheet %q has no tabular header", sheets[0])
	}

	return tableFromRows(rows), nil
}

// parseDelimited tries comma then pipe across the fixed encoding list,
// accepting the first attempt that yields more than one column.
func (d *DialectDetector) parseDelimited(content []byte) *Table {
	for _, delim := range delimiters {
		for _, enc := range textEncodings {
			decoded, ok := decode(content, enc.charmap)
			if !ok {
				continue
			}
			reader := csv.NewReader(strings.NewReader(decoded))
			reader.Comma = delim
			reader.FieldsPerRecord = -1
			reader.LazyQuotes = true

			rows, err := reader.ReadAll()
			if err != nil || len(rows) == 0 || len(rows[0]) <= 1 {
				continue
			}
			d.logger.Debug("delimited parse accepted",
				zap.String("delimiter", string(delim)),
				zap.String("encoding", enc.name))
			return tableFromRows(rows)
		}
	}
	return nil
}

func decode(content []byte, cm *charmap.Charmap) (string, bool) {
	if cm == nil {
		if !utf8.Valid(content) {
			return "", false
		}
		return string(content), true
	}
	decoded, err := cm.NewDecoder().Bytes(content)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func tableFromRows(rows [][]string) *Table {
	headers := rows[0]
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, row)
			row = padded
		} else if len(row) > len(headers) {
			row = row[:len(headers)]
		}
		body = append(body, row)
	}
	return &Table{Headers: headers, Rows: body}
}

// normalizeHeaders lower-cases and trims every header and collapses the
// vendor "%" marker to a single "% " prefix token so the detailed synonym
// table matches regardless of the original spacing.
func normalizeHeaders(t *Table) {
	for i, h := range t.Headers {
		h = strings.ToLower(strings.TrimSpace(h))
		if strings.HasPrefix(h, "%") {
			h = "% " + strings.TrimSpace(strings.TrimPrefix(h, "%"))
		}
		t.Headers[i] = h
	}
}

// classifySchema applies the header-name signals in priority order.
func classifySchema(t *Table) Schema {
	// 1. An explicit A-number/B-number header pair is the detailed dialect.
	if t.HasHeader("a number", "% a number") && t.HasHeader("b number", "% b number") {
		return SchemaDetailed
	}
	// 2. All four canonical standard headers.
	if t.HasHeader("anumber") && t.HasHeader("bnumber") && t.HasHeader("date") && t.HasHeader("duration") {
		return SchemaStandard
	}
	// 3. Recognized alternate spellings for caller/callee/timestamp/duration.
	if hasSynonymFor(t, "a_number") && hasSynonymFor(t, "b_number") &&
		hasSynonymFor(t, "date") && hasSynonymFor(t, "duration_seconds") {
		return SchemaStandard
	}
	// 4. Separate date and time columns.
	if t.HasHeader("date", "% date") && t.HasHeader("time", "% time") {
		return SchemaDetailed
	}
	return SchemaStandard
}

func hasSynonymFor(t *Table, canonical string) bool {
	for _, h := range t.Headers {
		if standardSynonyms[h] == canonical {
			return true
		}
	}
	return false
}
