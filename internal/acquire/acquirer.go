package acquire

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

// Fetcher retrieves a single location's current observation.
type Fetcher interface {
	Fetch(ctx context.Context, loc domain.Location) (domain.Observation, error)
}

// Acquirer fetches a batch of locations with bounded concurrency. Failures
// are collected per location; the batch always returns whatever succeeded.
type Acquirer struct {
	fetcher Fetcher
	limit   int
	logger  *slog.Logger
}

// NewAcquirer creates an Acquirer running at most limit fetches at once.
func NewAcquirer(fetcher Fetcher, limit int, logger *slog.Logger) *Acquirer {
	if limit < 1 {
		limit = 1
	}
	return &Acquirer{fetcher: fetcher, limit: limit, logger: logger}
}

// FetchAll fetches every location and returns the successful observations in
// the input's location order plus one AcquisitionError per failed location.
// It never returns early: a failing location is reported and skipped, not
// propagated.
func (a *Acquirer) FetchAll(ctx context.Context, locations []domain.Location) ([]domain.Observation, []AcquisitionError) {
	results := make([]domain.Observation, len(locations))
	fetched := make([]bool, len(locations))
	failures := make([]*AcquisitionError, len(locations))

	var g errgroup.Group
	g.SetLimit(a.limit)

	for i, loc := range locations {
		g.Go(func() error {
			obs, err := a.fetcher.Fetch(ctx, loc)
			if err != nil {
				var acqErr *AcquisitionError
				if !errors.As(err, &acqErr) {
					acqErr = &AcquisitionError{LocationID: loc.ID, Attempts: 1, Err: err}
				}
				failures[i] = acqErr
				a.logger.Warn("location acquisition failed",
					"location", loc.ID, "place", loc.Label(),
					"attempts", acqErr.Attempts, "error", acqErr.Err)
				return nil
			}
			results[i] = obs
			fetched[i] = true
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are collected per slot

	observations := make([]domain.Observation, 0, len(locations))
	var failed []AcquisitionError
	for i := range locations {
		if fetched[i] {
			observations = append(observations, results[i])
			continue
		}
		if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}
	return observations, failed
}
