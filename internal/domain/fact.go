package domain

import (
	"fmt"
	"time"
)

// Location identifies a place whose weather is tracked. The ID is stable
// across runs; it seeds extraction identity, so renaming a location's ID
// changes the identity of every future observation for it.
type Location struct {
	ID        string  `json:"id" mapstructure:"id"`
	City      string  `json:"city" mapstructure:"city"`
	State     string  `json:"state" mapstructure:"state"`
	Country   string  `json:"country,omitempty" mapstructure:"country"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
}

// Label returns a human-readable "City, State" form for logs and alerts,
// falling back to "City, Country" for locations without a state code.
func (l Location) Label() string {
	switch {
	case l.State != "":
		return fmt.Sprintf("%s, %s", l.City, l.State)
	case l.Country != "":
		return fmt.Sprintf("%s, %s", l.City, l.Country)
	default:
		return l.City
	}
}

// Observation is one fetched, still-unparsed API response for a location.
type Observation struct {
	Location    Location
	Body        []byte
	RequestedAt time.Time
}

// WeatherFact is the validated, flattened record produced by transformation.
// Fixed identity and location fields live as struct members; measured values
// live in Metrics keyed by dataset column name so that newly configured API
// parameters become new columns without a type change.
type WeatherFact struct {
	ExtractionID  string
	LocationID    string
	City          string
	State         string
	Latitude      float64
	Longitude     float64
	EventTime     time.Time // observation timestamp reported by the API
	RequestedAt   time.Time // when the HTTP request was issued
	RecordedAt    time.Time // when this fact was built
	WeatherCode   *int64
	Description   string
	Metrics       map[string]float64
	SourceVersion string

	Raw []byte `json:"-"`
}

// EventDate returns the fact's partition key, the UTC calendar date of the
// observation in YYYY-MM-DD form.
func (f WeatherFact) EventDate() string {
	return f.EventTime.UTC().Format("2006-01-02")
}

// Metric returns the named metric value and whether it was present in the
// source payload. Absent means the API reported null or the parameter was
// not requested.
func (f WeatherFact) Metric(column string) (float64, bool) {
	v, ok := f.Metrics[column]
	return v, ok
}
