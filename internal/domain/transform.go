package domain

import (
	"fmt"
	"time"
)

// metricColumns maps Open-Meteo parameter names to dataset column names.
// Parameters absent from this table keep their raw API name, so extending
// the configured parameter list never silently drops a value.
var metricColumns = map[string]string{
	"temperature_2m":            "temperature_celsius",
	"apparent_temperature":      "apparent_temperature_celsius",
	"relative_humidity_2m":      "relative_humidity",
	"precipitation":             "precipitation_mm",
	"precipitation_probability": "precipitation_probability",
	"rain":                      "rain_mm",
	"snowfall":                  "snowfall_cm",
	"wind_speed_10m":            "wind_speed_kmh",
	"wind_gusts_10m":            "wind_gusts_kmh",
	"surface_pressure":          "surface_pressure_hpa",
	"cloud_cover":               "cloud_cover_pct",
}

// eventTimeLayouts are the timestamp shapes Open-Meteo produces. The API
// reports minute resolution without a zone suffix when queried with
// timezone=UTC; the RFC 3339 forms cover proxied or cached responses.
var eventTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// MetricColumn returns the dataset column name for an Open-Meteo parameter.
func MetricColumn(param string) string {
	if col, ok := metricColumns[param]; ok {
		return col
	}
	return param
}

// TransformError marks a single observation that could not be turned into a
// fact. One bad payload skips one record; it never aborts the batch.
type TransformError struct {
	LocationID string
	Err        error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform observation for location %s: %v", e.LocationID, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// BuildFact converts a decoded payload into a WeatherFact: it parses the
// observation timestamp, assigns the extraction ID, maps metric parameters to
// their column names, resolves the weather code description, and stamps
// recorded-at from the package clock. BuildFact is pure apart from the clock
// read; it performs no I/O.
func BuildFact(obs Observation, payload ObservationPayload) (WeatherFact, error) {
	eventTime, err := parseEventTime(payload.Current.Time)
	if err != nil {
		return WeatherFact{}, err
	}

	fact := WeatherFact{
		ExtractionID: NewExtractionID(obs.Location.ID, eventTime),
		LocationID:   obs.Location.ID,
		City:         obs.Location.City,
		State:        obs.Location.State,
		Latitude:     payload.Latitude,
		Longitude:    payload.Longitude,
		EventTime:    eventTime,
		RequestedAt:  obs.RequestedAt.UTC(),
		RecordedAt:   clock.Now().UTC(),
		Metrics:      make(map[string]float64, len(payload.Current.Values)),
		Raw:          obs.Body,
	}

	for param, value := range payload.Current.Values {
		if param == "weather_code" {
			code := int64(value)
			fact.WeatherCode = &code
			fact.Description = DescribeWeatherCode(code)
			continue
		}
		fact.Metrics[MetricColumn(param)] = value
	}

	return fact, nil
}

// parseEventTime parses the API's observation timestamp. Zone-less values are
// interpreted as UTC and everything is truncated to the minute so the
// timestamp always matches the one hashed into the extraction ID.
func parseEventTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("observation timestamp is empty")
	}
	for _, layout := range eventTimeLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t.UTC().Truncate(time.Minute), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized observation timestamp %q", value)
}
