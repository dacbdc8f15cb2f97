package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

// stubFetcher fails the locations named in failing and tracks the maximum
// number of fetches running at once.
type stubFetcher struct {
	failing map[string]bool
	delay   time.Duration

	mu      sync.Mutex
	current int
	peak    int
}

func (s *stubFetcher) Fetch(ctx context.Context, loc domain.Location) (domain.Observation, error) {
	s.mu.Lock()
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Observation{}, ctx.Err()
		}
	}

	if s.failing[loc.ID] {
		return domain.Observation{}, &AcquisitionError{
			LocationID: loc.ID,
			Attempts:   3,
			Err:        errors.New("connection refused"),
		}
	}
	return domain.Observation{Location: loc, Body: []byte("{}")}, nil
}

func makeLocations(n int) []domain.Location {
	locs := make([]domain.Location, n)
	for i := range locs {
		locs[i] = domain.Location{ID: fmt.Sprintf("loc-%d", i), City: fmt.Sprintf("City %d", i)}
	}
	return locs
}

func TestAcquirer_FetchAll_PartialFailure(t *testing.T) {
	locations := makeLocations(8)
	fetcher := &stubFetcher{failing: map[string]bool{"loc-2": true, "loc-5": true}}
	acquirer := NewAcquirer(fetcher, 4, discardLogger())

	observations, failures := acquirer.FetchAll(context.Background(), locations)

	require.Len(t, observations, 6)
	require.Len(t, failures, 2)

	// Successes keep the input's location order.
	wantOrder := []string{"loc-0", "loc-1", "loc-3", "loc-4", "loc-6", "loc-7"}
	for i, obs := range observations {
		assert.Equal(t, wantOrder[i], obs.Location.ID)
	}

	assert.Equal(t, "loc-2", failures[0].LocationID)
	assert.Equal(t, "loc-5", failures[1].LocationID)
	assert.Equal(t, 3, failures[0].Attempts)
}

func TestAcquirer_FetchAll_AllFail(t *testing.T) {
	locations := makeLocations(3)
	fetcher := &stubFetcher{failing: map[string]bool{"loc-0": true, "loc-1": true, "loc-2": true}}
	acquirer := NewAcquirer(fetcher, 2, discardLogger())

	observations, failures := acquirer.FetchAll(context.Background(), locations)

	assert.Empty(t, observations)
	assert.Len(t, failures, 3)
}

func TestAcquirer_FetchAll_RespectsConcurrencyLimit(t *testing.T) {
	locations := makeLocations(20)
	fetcher := &stubFetcher{delay: 5 * time.Millisecond}
	acquirer := NewAcquirer(fetcher, 3, discardLogger())

	observations, failures := acquirer.FetchAll(context.Background(), locations)

	require.Len(t, observations, 20)
	assert.Empty(t, failures)
	assert.LessOrEqual(t, fetcher.peak, 3)
}

func TestAcquirer_FetchAll_WrapsPlainErrors(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, loc domain.Location) (domain.Observation, error) {
		return domain.Observation{}, errors.New("boom")
	})
	acquirer := NewAcquirer(fetcher, 1, discardLogger())

	_, failures := acquirer.FetchAll(context.Background(), makeLocations(1))

	require.Len(t, failures, 1)
	assert.Equal(t, "loc-0", failures[0].LocationID)
	assert.Equal(t, 1, failures[0].Attempts)
}

type fetcherFunc func(ctx context.Context, loc domain.Location) (domain.Observation, error)

func (f fetcherFunc) Fetch(ctx context.Context, loc domain.Location) (domain.Observation, error) {
	return f(ctx, loc)
}
