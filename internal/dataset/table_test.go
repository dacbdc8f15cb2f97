package dataset

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

func codePtr(n int64) *int64 { return &n }

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func makeFact(t *testing.T, id, event, recorded string, metrics map[string]float64) domain.WeatherFact {
	t.Helper()
	return domain.WeatherFact{
		ExtractionID: id,
		LocationID:   "nyc",
		City:         "New York",
		State:        "NY",
		Latitude:     40.7128,
		Longitude:    -74.006,
		EventTime:    mustTime(t, event),
		RequestedAt:  mustTime(t, recorded),
		RecordedAt:   mustTime(t, recorded),
		WeatherCode:  codePtr(3),
		Description:  "Overcast",
		Metrics:      metrics,
	}
}

func TestFromFacts_ColumnsAndValues(t *testing.T) {
	fact := makeFact(t, "aa11bb22cc33dd44", "2025-03-10T14:15:00Z", "2025-03-10T14:16:02Z", map[string]float64{
		"temperature_celsius": 12.5,
		"relative_humidity":   55,
	})
	fact.SourceVersion = "open-meteo-v1"

	table := FromFacts([]domain.WeatherFact{fact})

	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{
		ColExtractionID, ColLocationID, ColCity, ColState,
		ColLatitude, ColLongitude, ColEventTime, ColEventDate,
		ColRecordedAt, ColRequestedAt, ColWeatherCode, ColDescription,
		ColSourceVersion, "relative_humidity", "temperature_celsius",
	}, table.ColumnNames())

	row := table.Rows[0]
	assert.Equal(t, "aa11bb22cc33dd44", row[ColExtractionID])
	assert.Equal(t, "nyc", row[ColLocationID])
	assert.Equal(t, "New York", row[ColCity])
	assert.Equal(t, "2025-03-10T14:15:00Z", row[ColEventTime])
	assert.Equal(t, "2025-03-10", row[ColEventDate])
	assert.Equal(t, "2025-03-10T14:16:02Z", row[ColRecordedAt])
	assert.Equal(t, int64(3), row[ColWeatherCode])
	assert.Equal(t, "Overcast", row[ColDescription])
	assert.Equal(t, "open-meteo-v1", row[ColSourceVersion])
	assert.Equal(t, 12.5, row["temperature_celsius"])
	assert.Equal(t, float64(55), row["relative_humidity"])
}

func TestFromFacts_MetricUnionAcrossFacts(t *testing.T) {
	a := makeFact(t, "aaaaaaaaaaaaaaaa", "2025-03-10T14:00:00Z", "2025-03-10T14:01:00Z", map[string]float64{
		"precipitation_mm": 0.4,
	})
	b := makeFact(t, "bbbbbbbbbbbbbbbb", "2025-03-10T14:00:00Z", "2025-03-10T14:01:00Z", map[string]float64{
		"wind_speed_kmh": 18.2,
	})

	table := FromFacts([]domain.WeatherFact{a, b})

	assert.True(t, table.HasColumn("precipitation_mm"))
	assert.True(t, table.HasColumn("wind_speed_kmh"))
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 0.4, first["precipitation_mm"])
	assert.Nil(t, first["wind_speed_kmh"])
}

func TestFromFacts_NullMetricsStayAbsent(t *testing.T) {
	fact := makeFact(t, "aa11bb22cc33dd44", "2025-03-10T14:15:00Z", "2025-03-10T14:16:00Z", nil)
	fact.WeatherCode = nil
	fact.RequestedAt = time.Time{}

	table := FromFacts([]domain.WeatherFact{fact})

	row := table.Rows[0]
	_, hasCode := row[ColWeatherCode]
	assert.False(t, hasCode)
	_, hasRequested := row[ColRequestedAt]
	assert.False(t, hasRequested)
}

func TestMerge_LastWriteWins(t *testing.T) {
	older := makeFact(t, "aa11bb22cc33dd44", "2025-03-10T14:15:00Z", "2025-03-10T14:16:00Z", map[string]float64{
		"temperature_celsius": 11.0,
	})
	newer := older
	newer.RecordedAt = mustTime(t, "2025-03-10T15:30:00Z")
	newer.Metrics = map[string]float64{"temperature_celsius": 12.5}

	existing := FromFacts([]domain.WeatherFact{older})
	incoming := FromFacts([]domain.WeatherFact{newer})

	merged := Merge(existing, incoming)
	require.Len(t, merged.Rows, 1)
	assert.Equal(t, 12.5, merged.Rows[0]["temperature_celsius"])

	// The reverse direction keeps the newer row in place.
	merged = Merge(incoming, existing)
	require.Len(t, merged.Rows, 1)
	assert.Equal(t, 12.5, merged.Rows[0]["temperature_celsius"])
}

func TestMerge_TieGoesToIncoming(t *testing.T) {
	first := makeFact(t, "aa11bb22cc33dd44", "2025-03-10T14:15:00Z", "2025-03-10T14:16:00Z", map[string]float64{
		"temperature_celsius": 11.0,
	})
	rerun := first
	rerun.Metrics = map[string]float64{"temperature_celsius": 11.5}

	merged := Merge(FromFacts([]domain.WeatherFact{first}), FromFacts([]domain.WeatherFact{rerun}))

	require.Len(t, merged.Rows, 1)
	assert.Equal(t, 11.5, merged.Rows[0]["temperature_celsius"])
}

func TestMerge_NewColumnAppendsAndBackfillsNull(t *testing.T) {
	old := makeFact(t, "aaaaaaaaaaaaaaaa", "2025-03-10T14:00:00Z", "2025-03-10T14:01:00Z", map[string]float64{
		"temperature_celsius": 9.5,
	})
	upgraded := makeFact(t, "bbbbbbbbbbbbbbbb", "2025-03-11T14:00:00Z", "2025-03-11T14:01:00Z", map[string]float64{
		"temperature_celsius":       10.1,
		"precipitation_probability": 80,
	})

	existing := FromFacts([]domain.WeatherFact{old})
	incoming := FromFacts([]domain.WeatherFact{upgraded})

	merged := Merge(existing, incoming)

	names := merged.ColumnNames()
	require.True(t, merged.HasColumn("precipitation_probability"))
	assert.Equal(t, "precipitation_probability", names[len(names)-1])

	require.Len(t, merged.Rows, 2)
	assert.Nil(t, merged.Rows[0]["precipitation_probability"])
	assert.Equal(t, float64(80), merged.Rows[1]["precipitation_probability"])
}

func TestMerge_Idempotent(t *testing.T) {
	base := []domain.WeatherFact{
		makeFact(t, "aaaaaaaaaaaaaaaa", "2025-03-10T14:00:00Z", "2025-03-10T14:01:00Z", map[string]float64{"temperature_celsius": 9.5}),
		makeFact(t, "bbbbbbbbbbbbbbbb", "2025-03-10T15:00:00Z", "2025-03-10T15:01:00Z", map[string]float64{"temperature_celsius": 10.0}),
	}
	existing := FromFacts(base)
	incoming := FromFacts(base)

	once := Merge(existing, incoming)
	twice := Merge(once, incoming)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge is not idempotent (-want +got):\n%s", diff)
	}
}

func TestMerge_SortsByEventTimeThenID(t *testing.T) {
	late := makeFact(t, "aaaaaaaaaaaaaaaa", "2025-03-10T16:00:00Z", "2025-03-10T16:01:00Z", nil)
	earlyB := makeFact(t, "bbbbbbbbbbbbbbbb", "2025-03-10T14:00:00Z", "2025-03-10T14:01:00Z", nil)
	earlyA := makeFact(t, "0000aaaa1111bbbb", "2025-03-10T14:00:00Z", "2025-03-10T14:01:00Z", nil)

	merged := Merge(FromFacts([]domain.WeatherFact{late}), FromFacts([]domain.WeatherFact{earlyB, earlyA}))

	require.Len(t, merged.Rows, 3)
	assert.Equal(t, "0000aaaa1111bbbb", merged.Rows[0][ColExtractionID])
	assert.Equal(t, "bbbbbbbbbbbbbbbb", merged.Rows[1][ColExtractionID])
	assert.Equal(t, "aaaaaaaaaaaaaaaa", merged.Rows[2][ColExtractionID])
}

func TestMerge_ColumnKindNeverChanges(t *testing.T) {
	existing := Table{
		Columns: []Column{{Name: ColExtractionID, Kind: KindString}, {Name: "temperature_celsius", Kind: KindFloat}},
		Rows:    []Row{{ColExtractionID: "aaaaaaaaaaaaaaaa", "temperature_celsius": 9.5}},
	}
	incoming := Table{
		Columns: []Column{{Name: ColExtractionID, Kind: KindString}, {Name: "temperature_celsius", Kind: KindInt}},
		Rows:    []Row{{ColExtractionID: "bbbbbbbbbbbbbbbb", "temperature_celsius": int64(10)}},
	}

	merged := Merge(existing, incoming)

	for _, col := range merged.Columns {
		if col.Name == "temperature_celsius" {
			assert.Equal(t, KindFloat, col.Kind)
		}
	}
}

func TestMerge_SkipsRowsWithoutID(t *testing.T) {
	existing := Table{Columns: identityColumns}
	incoming := Table{
		Columns: identityColumns,
		Rows: []Row{
			{ColCity: "Nowhere"},
			{ColExtractionID: "aaaaaaaaaaaaaaaa", ColEventTime: "2025-03-10T14:00:00Z"},
		},
	}

	merged := Merge(existing, incoming)

	require.Len(t, merged.Rows, 1)
	assert.Equal(t, "aaaaaaaaaaaaaaaa", merged.Rows[0][ColExtractionID])
}
