package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewExtractionID(t *testing.T) {
	base := time.Date(2024, 5, 11, 14, 0, 0, 0, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		a := NewExtractionID("nyc", base)
		b := NewExtractionID("nyc", base)
		assert.Equal(t, a, b)
		assert.Len(t, a, 16)
	})

	t.Run("sub-minute jitter collapses", func(t *testing.T) {
		a := NewExtractionID("nyc", base.Add(10*time.Second))
		b := NewExtractionID("nyc", base.Add(50*time.Second))
		assert.Equal(t, a, b)
	})

	t.Run("distinct minutes differ", func(t *testing.T) {
		a := NewExtractionID("nyc", base)
		b := NewExtractionID("nyc", base.Add(time.Minute))
		assert.NotEqual(t, a, b)
	})

	t.Run("distinct locations differ", func(t *testing.T) {
		a := NewExtractionID("nyc", base)
		b := NewExtractionID("chi", base)
		assert.NotEqual(t, a, b)
	})

	t.Run("timezone normalized", func(t *testing.T) {
		est := time.FixedZone("EST", -5*3600)
		a := NewExtractionID("nyc", base)
		b := NewExtractionID("nyc", base.In(est))
		assert.Equal(t, a, b)
	})
}
