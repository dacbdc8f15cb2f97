package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationLabel(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want string
	}{
		{
			name: "city and state",
			loc:  Location{City: "New York", State: "NY", Country: "US"},
			want: "New York, NY",
		},
		{
			name: "country fallback",
			loc:  Location{City: "London", Country: "GB"},
			want: "London, GB",
		},
		{
			name: "city only",
			loc:  Location{City: "Springfield"},
			want: "Springfield",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.Label())
		})
	}
}

func TestWeatherFactMetric(t *testing.T) {
	fact := WeatherFact{Metrics: map[string]float64{"temperature_celsius": -3.5}}

	v, ok := fact.Metric("temperature_celsius")
	assert.True(t, ok)
	assert.Equal(t, -3.5, v)

	_, ok = fact.Metric("wind_speed_kmh")
	assert.False(t, ok)
}
