package quality

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func testRanges() map[string]Range {
	return map[string]Range{
		"temperature_celsius": {Min: ptr(-90), Max: ptr(60)},
		"relative_humidity":   {Min: ptr(0), Max: ptr(100)},
		"precipitation_mm":    {Min: ptr(0)},
		"wind_speed_kmh":      {Min: ptr(0)},
	}
}

func validFact(id string) domain.WeatherFact {
	code := int64(3)
	return domain.WeatherFact{
		ExtractionID: id,
		LocationID:   "nyc",
		City:         "New York",
		State:        "NY",
		Latitude:     40.71,
		Longitude:    -74.01,
		EventTime:    time.Date(2024, 5, 11, 14, 0, 0, 0, time.UTC),
		RecordedAt:   time.Date(2024, 5, 11, 14, 5, 0, 0, time.UTC),
		WeatherCode:  &code,
		Description:  "Overcast",
		Metrics: map[string]float64{
			"temperature_celsius": 12.5,
			"relative_humidity":   55,
			"precipitation_mm":    0,
			"wind_speed_kmh":      10.2,
		},
	}
}

func TestGate_Validate_AcceptsInRangeFact(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	accepted, rejected := gate.Validate([]domain.WeatherFact{validFact("a1")})

	require.Len(t, accepted, 1)
	assert.Empty(t, rejected)
}

func TestGate_Validate_HumidityRange(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	inRange := validFact("a1")
	inRange.Metrics["relative_humidity"] = 55

	outOfRange := validFact("a2")
	outOfRange.Metrics["relative_humidity"] = 150

	accepted, rejected := gate.Validate([]domain.WeatherFact{inRange, outOfRange})

	require.Len(t, accepted, 1)
	assert.Equal(t, "a1", accepted[0].ExtractionID)

	require.Len(t, rejected, 1)
	assert.Equal(t, "a2", rejected[0].Fact.ExtractionID)
	require.Len(t, rejected[0].Violations, 1)
	v := rejected[0].Violations[0]
	assert.Equal(t, RuleRange, v.Rule)
	assert.Equal(t, "relative_humidity", v.Field)
	assert.Contains(t, v.Detail, "above maximum 100")
}

func TestGate_Validate_MinOnlyRange(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	fact := validFact("a1")
	fact.Metrics["precipitation_mm"] = -0.5

	accepted, rejected := gate.Validate([]domain.WeatherFact{fact})

	assert.Empty(t, accepted)
	require.Len(t, rejected, 1)
	assert.Equal(t, "precipitation_mm", rejected[0].Violations[0].Field)
	assert.Contains(t, rejected[0].Violations[0].Detail, "below minimum 0")
}

func TestGate_Validate_AbsentMetricPassesRange(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	fact := validFact("a1")
	delete(fact.Metrics, "relative_humidity")

	accepted, rejected := gate.Validate([]domain.WeatherFact{fact})

	assert.Len(t, accepted, 1)
	assert.Empty(t, rejected)
}

func TestGate_Validate_RequiredFields(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	cases := []struct {
		name  string
		mutate func(*domain.WeatherFact)
		field string
	}{
		{name: "missing city", mutate: func(f *domain.WeatherFact) { f.City = "" }, field: "location_city"},
		{name: "zero event time", mutate: func(f *domain.WeatherFact) { f.EventTime = time.Time{} }, field: "event_time_utc"},
		{name: "nil weather code", mutate: func(f *domain.WeatherFact) { f.WeatherCode = nil }, field: "weather_code"},
		{name: "empty extraction id", mutate: func(f *domain.WeatherFact) { f.ExtractionID = "" }, field: "extraction_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fact := validFact("a1")
			tc.mutate(&fact)

			accepted, rejected := gate.Validate([]domain.WeatherFact{fact})

			assert.Empty(t, accepted)
			require.Len(t, rejected, 1)
			require.NotEmpty(t, rejected[0].Violations)
			assert.Equal(t, RuleRequiredField, rejected[0].Violations[0].Rule)
			assert.Equal(t, tc.field, rejected[0].Violations[0].Field)
		})
	}
}

func TestGate_Validate_StatelessLocationAccepted(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	fact := validFact("a1")
	fact.State = ""

	accepted, rejected := gate.Validate([]domain.WeatherFact{fact})

	assert.Len(t, accepted, 1)
	assert.Empty(t, rejected)
}

func TestGate_Validate_DuplicateIDsRejectBoth(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	first := validFact("dup")
	second := validFact("dup")
	second.Metrics["temperature_celsius"] = 13.1
	third := validFact("unique")

	accepted, rejected := gate.Validate([]domain.WeatherFact{first, second, third})

	require.Len(t, accepted, 1)
	assert.Equal(t, "unique", accepted[0].ExtractionID)

	require.Len(t, rejected, 2)
	for _, r := range rejected {
		assert.Equal(t, "dup", r.Fact.ExtractionID)
		require.Len(t, r.Violations, 1)
		assert.Equal(t, RuleDuplicateID, r.Violations[0].Rule)
	}
}

func TestGate_Validate_EmptyBatch(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	accepted, rejected := gate.Validate(nil)

	assert.Empty(t, accepted)
	assert.Empty(t, rejected)
}

func TestGate_Validate_DoesNotMutateInput(t *testing.T) {
	gate := NewGate(testRanges(), discardLogger())

	facts := []domain.WeatherFact{validFact("a1"), validFact("a1")}
	before := make([]domain.WeatherFact, len(facts))
	copy(before, facts)

	gate.Validate(facts)

	assert.Equal(t, before, facts)
}
