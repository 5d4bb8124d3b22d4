package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
)

func TestDetect_CommaDelimited(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("ANumber,BNumber,Date,Duration\n6281234,6285678,2024-01-01 10:00:00,30\n")
	table, schema, err := detector.Detect(content, "calls.csv")

	require.NoError(t, err)
	assert.Equal(t, SchemaStandard, schema)
	assert.Equal(t, []string{"anumber", "bnumber", "date", "duration"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "6281234", table.Cell(0, 0))
}

func TestDetect_PipeDelimited(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("ANumber|BNumber|Date|Duration\n6281234|6285678|2024-01-01 10:00:00|30\n")
	table, schema, err := detector.Detect(content, "calls.txt")

	require.NoError(t, err)
	assert.Equal(t, SchemaStandard, schema)
	assert.Equal(t, []string{"anumber", "bnumber", "date", "duration"}, table.Headers)
}

func TestDetect_Latin1Encoding(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	// 0xE9 is é in latin1 but an invalid UTF-8 sequence on its own.
	content := []byte("ANumber,BNumber,Date,Duration,SiteName\n6281234,6285678,2024-01-01 10:00:00,30,Caf\xe9\n")
	table, schema, err := detector.Detect(content, "calls.csv")

	require.NoError(t, err)
	assert.Equal(t, SchemaStandard, schema)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Café", table.Cell(0, 4))
}

func TestDetect_Spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"ANumber", "BNumber", "Date", "Duration"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"6281234", "6285678", "2024-01-01 10:00:00", "30"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	detector := NewDialectDetector(zap.NewNop())
	table, schema, err := detector.Detect(buf.Bytes(), "calls.xlsx")

	require.NoError(t, err)
	assert.Equal(t, SchemaStandard, schema)
	assert.Equal(t, []string{"anumber", "bnumber", "date", "duration"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "6285678", table.Cell(0, 1))
}

func TestDetect_Unreadable(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	// No delimiter yields a single column in every attempt.
	_, _, err := detector.Detect([]byte("not a table\njust prose\n"), "notes.txt")

	require.Error(t, err)
	var fe *apperrors.FormatError
	assert.ErrorAs(t, err, &fe)
	assert.True(t, apperrors.IsBadInput(err))
}

func TestDetect_RaggedRowsPaddedToHeaderWidth(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("ANumber,BNumber,Date,Duration\n6281234,6285678\n6281234,6285678,2024-01-01,30,extra\n")
	table, _, err := detector.Detect(content, "calls.csv")

	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Len(t, table.Rows[0], 4)
	assert.Len(t, table.Rows[1], 4)
	assert.Equal(t, "", table.Cell(0, 3))
	assert.Equal(t, "30", table.Cell(1, 3))
}

func TestClassifySchema_DetailedByABNumberPair(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("% A Number,% B Number,% Date,% Time,% Duration\n+6281234,+6285678,01/Jan/24,10:00:00,30\n")
	_, schema, err := detector.Detect(content, "detailed.csv")

	require.NoError(t, err)
	assert.Equal(t, SchemaDetailed, schema)
}

func TestClassifySchema_DetailedBySeparateDateTime(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("Caller,Called,Date,Time\n6281234,6285678,01/Jan/24,10:00:00\n")
	_, schema, err := detector.Detect(content, "detailed.csv")

	require.NoError(t, err)
	assert.Equal(t, SchemaDetailed, schema)
}

func TestClassifySchema_StandardBySynonyms(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("Caller,Called,Datetime,Dur(s)\n6281234,6285678,2024-01-01 10:00:00,30\n")
	_, schema, err := detector.Detect(content, "calls.csv")

	require.NoError(t, err)
	assert.Equal(t, SchemaStandard, schema)
}

func TestClassifySchema_DefaultsToStandard(t *testing.T) {
	detector := NewDialectDetector(zap.NewNop())

	content := []byte("foo,bar\n1,2\n")
	_, schema, err := detector.Detect(content, "mystery.csv")

	require.NoError(t, err)
	assert.Equal(t, SchemaStandard, schema)
}

func TestNormalizeHeaders_PercentPrefixCollapsed(t *testing.T) {
	table := &Table{Headers: []string{"%A Number", "%  B Number", " % Date "}}
	normalizeHeaders(table)
	assert.Equal(t, []string{"% a number", "% b number", "% date"}, table.Headers)
}

func TestTable_DropColumn(t *testing.T) {
	table := &Table{
		Headers: []string{"a", "b", "c"},
		Rows:    [][]string{{"1", "2", "3"}, {"4", "5", "6"}},
	}

	table.DropColumn("b")

	assert.Equal(t, []string{"a", "c"}, table.Headers)
	assert.Equal(t, [][]string{{"1", "3"}, {"4", "6"}}, table.Rows)

	table.DropColumn("missing")
	assert.Equal(t, []string{"a", "c"}, table.Headers)
}
