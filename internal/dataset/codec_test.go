package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

func codecTable(t *testing.T) Table {
	t.Helper()
	full := makeFact(t, "aa11bb22cc33dd44", "2025-03-10T14:15:00Z", "2025-03-10T14:16:02Z", map[string]float64{
		"temperature_celsius": 12.5,
		"relative_humidity":   55,
	})
	sparse := makeFact(t, "ee55ff66aa77bb88", "2025-03-10T15:15:00Z", "2025-03-10T15:16:02Z", map[string]float64{
		"temperature_celsius": 13.1,
	})
	sparse.WeatherCode = nil
	sparse.Description = "Unknown"
	return FromFacts([]domain.WeatherFact{full, sparse})
}

func TestArrowRoundTrip(t *testing.T) {
	table := codecTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, table))

	decoded, err := ReadArrow(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, table.Columns, decoded.Columns)
	require.Len(t, decoded.Rows, len(table.Rows))
	if diff := cmp.Diff(table.Rows, decoded.Rows); diff != "" {
		t.Fatalf("rows changed across the round trip (-want +got):\n%s", diff)
	}

	// Nulls survive as absent values, not zero values.
	assert.Nil(t, decoded.Rows[1][ColWeatherCode])
	assert.Nil(t, decoded.Rows[1]["relative_humidity"])
}

func TestArrowRoundTrip_EmptyTable(t *testing.T) {
	table := FromFacts(nil)

	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, table))

	decoded, err := ReadArrow(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, table.Columns, decoded.Columns)
	assert.Empty(t, decoded.Rows)
}

func TestArrowWriteIsDeterministic(t *testing.T) {
	table := codecTable(t)

	var first, second bytes.Buffer
	require.NoError(t, WriteArrow(&first, table))
	require.NoError(t, WriteArrow(&second, table))

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestReadArrow_Garbage(t *testing.T) {
	_, err := ReadArrow(bytes.NewReader([]byte("not an arrow file")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open arrow reader")
}

func TestCSVRoundTrip(t *testing.T) {
	table := codecTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	decoded, err := ReadCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, table.ColumnNames(), decoded.ColumnNames())
	require.Len(t, decoded.Rows, len(table.Rows))
	assert.Equal(t, table.Rows, decoded.Rows)
}

func TestCSVRoundTrip_NullsAreEmptyCells(t *testing.T) {
	table := codecTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	// The sparse row has no weather code and no humidity reading.
	assert.Contains(t, lines[2], ",,")

	decoded, err := ReadCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Nil(t, decoded.Rows[1][ColWeatherCode])
}

func TestReadCSV_AllDigitIDStaysString(t *testing.T) {
	input := strings.Join([]string{
		"extraction_id,event_time_utc,temperature_celsius",
		"1234567890123456,2025-03-10T14:15:00Z,12",
	}, "\n")

	decoded, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, decoded.Rows, 1)
	assert.Equal(t, "1234567890123456", decoded.Rows[0][ColExtractionID])
	assert.Equal(t, float64(12), decoded.Rows[0]["temperature_celsius"])
}

func TestReadCSV_MissingHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header")
}
