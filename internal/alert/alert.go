// Package alert delivers run notifications. A notifier only hears about
// runs worth an operator's attention; clean runs stay quiet.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
)

// Event is the alert payload shared by all notifier backends.
type Event struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"` // failed or degraded
	Summary    string    `json:"summary"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Locations  int       `json:"locations"`
	Fetched    int       `json:"fetched"`
	Approved   int       `json:"approved"`
	Rejected   int       `json:"rejected"`
}

func eventFromReport(report *pipeline.RunReport) Event {
	status := "degraded"
	if report.Failed() {
		status = "failed"
	}
	return Event{
		RunID:      report.RunID,
		Status:     status,
		Summary:    report.Summary(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Locations:  report.Locations,
		Fetched:    report.Fetched,
		Approved:   report.Approved,
		Rejected:   report.Rejected(),
	}
}

// Multi fans one alert out to several notifiers. Every notifier is tried;
// delivery failures are joined.
type Multi []pipeline.Notifier

func (m Multi) Notify(ctx context.Context, report *pipeline.RunReport) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
