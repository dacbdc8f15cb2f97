package query

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

func queryFact(t *testing.T, id, city, state, event string, temp, precip float64) domain.WeatherFact {
	t.Helper()
	eventTime, err := time.Parse(time.RFC3339, event)
	require.NoError(t, err)
	code := int64(61)
	return domain.WeatherFact{
		ExtractionID: id,
		LocationID:   city,
		City:         city,
		State:        state,
		Latitude:     40,
		Longitude:    -74,
		EventTime:    eventTime,
		RecordedAt:   eventTime.Add(time.Minute),
		WeatherCode:  &code,
		Description:  "Rain",
		Metrics: map[string]float64{
			"temperature_celsius": temp,
			"precipitation_mm":    precip,
		},
	}
}

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	table := dataset.FromFacts([]domain.WeatherFact{
		queryFact(t, "aaaaaaaaaaaaaaaa", "New York", "NY", "2025-03-10T14:00:00Z", 12.5, 0),
		queryFact(t, "bbbbbbbbbbbbbbbb", "New York", "NY", "2025-03-11T14:00:00Z", 14.1, 2.4),
		queryFact(t, "cccccccccccccccc", "Chicago", "IL", "2025-03-10T14:00:00Z", 6.0, 5.5),
	})
	e, err := Open(context.Background(), table, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_Latest(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.Latest(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"location_city", "location_state", "event_time_utc",
		"temperature_celsius", "weather_description",
	}, res.Columns)
	require.Len(t, res.Rows, 3)
	// Newest observation first.
	assert.Equal(t, "New York", res.Rows[0][0])
	assert.Equal(t, "2025-03-11T14:00:00Z", res.Rows[0][2])
}

func TestEngine_Latest_CityFilterAndLimit(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.Latest(context.Background(), "New York", 1)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "14.1", res.Rows[0][3])
}

func TestEngine_AverageTemperature(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.AverageTemperature(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	// New York averages (12.5+14.1)/2 = 13.3 and sorts above Chicago.
	assert.Equal(t, []string{"New York", "13.3", "2"}, res.Rows[0])
	assert.Equal(t, []string{"Chicago", "6", "1"}, res.Rows[1])
}

func TestEngine_AverageTemperature_Since(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.AverageTemperature(context.Background(), "2025-03-11")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "New York", res.Rows[0][0])
	assert.Equal(t, "14.1", res.Rows[0][1])
}

func TestEngine_RainyObservations(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.RainyObservations(context.Background(), 1.0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	// Wettest first.
	assert.Equal(t, "Chicago", res.Rows[0][1])
	assert.Equal(t, "5.5", res.Rows[0][2])
}

func TestEngine_ByCity(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.ByCity(context.Background(), "Chicago")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Contains(t, res.Columns, "extraction_id")
	assert.Contains(t, res.Columns, "precipitation_mm")
}

func TestEngine_SQL(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.SQL(context.Background(),
		"SELECT count(*) AS n FROM analytics.weather_facts WHERE weather_code = 61")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "3", res.Rows[0][0])
}

func TestEngine_SQL_RejectsWrites(t *testing.T) {
	e := openTestEngine(t)

	cases := []string{
		"DELETE FROM analytics.weather_facts",
		"DROP TABLE analytics.weather_facts",
		"update analytics.weather_facts set location_city = 'x'",
		"SELECT 1; DELETE FROM analytics.weather_facts",
		"",
	}
	for _, stmt := range cases {
		_, err := e.SQL(context.Background(), stmt)
		assert.Error(t, err, stmt)
	}
}

func TestEngine_SQL_AllowsCTE(t *testing.T) {
	e := openTestEngine(t)

	res, err := e.SQL(context.Background(),
		"WITH warm AS (SELECT * FROM analytics.weather_facts WHERE temperature_celsius > 10) SELECT count(*) FROM warm")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2", res.Rows[0][0])
}
