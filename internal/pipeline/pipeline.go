// Package pipeline orchestrates one extract-transform-load run: fetch every
// configured location, transform payloads into facts, gate them for
// quality, and persist the survivors. A run always completes; partial
// failures are carried in the run report rather than aborting the batch.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/weather-data-etl/internal/acquire"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
	"github.com/couchcryptid/weather-data-etl/internal/observability"
	"github.com/couchcryptid/weather-data-etl/internal/quality"
	"github.com/couchcryptid/weather-data-etl/internal/store"
)

// Fetcher acquires observations for a set of locations.
type Fetcher interface {
	FetchAll(ctx context.Context, locations []domain.Location) ([]domain.Observation, []acquire.AcquisitionError)
}

// Transformer turns raw observations into weather facts.
type Transformer interface {
	Transform(observations []domain.Observation) ([]domain.WeatherFact, []domain.TransformError)
}

// Gate splits facts into approved and rejected.
type Gate interface {
	Validate(facts []domain.WeatherFact) ([]domain.WeatherFact, []quality.Rejection)
}

// Writer persists one batch across the storage layers.
type Writer interface {
	Write(ctx context.Context, transformed, approved []domain.WeatherFact) []store.StepResult
}

// Notifier delivers run alerts.
type Notifier interface {
	Notify(ctx context.Context, report *RunReport) error
}

// Options wires a Pipeline. Notifier is optional; nil Metrics get an
// unregistered set so tests need no registry.
type Options struct {
	Locations   []domain.Location
	Fetcher     Fetcher
	Transformer Transformer
	Gate        Gate
	Writer      Writer
	Notifier    Notifier
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Pipeline runs batches. It is safe for one run at a time; the scheduler
// serializes runs, and the last report is published atomically for the ops
// endpoints.
type Pipeline struct {
	locations   []domain.Location
	fetcher     Fetcher
	transformer Transformer
	gate        Gate
	writer      Writer
	notifier    Notifier
	metrics     *observability.Metrics
	logger      *slog.Logger

	lastReport atomic.Pointer[RunReport]
}

func New(opts Options) *Pipeline {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		locations:   opts.Locations,
		fetcher:     opts.Fetcher,
		transformer: opts.Transformer,
		gate:        opts.Gate,
		writer:      opts.Writer,
		notifier:    opts.Notifier,
		metrics:     metrics,
		logger:      logger,
	}
}

// LastReport returns the most recent run report, or nil before the first
// run completes.
func (p *Pipeline) LastReport() *RunReport {
	return p.lastReport.Load()
}

// Run executes one batch. The returned error is non-nil only when the run
// as a whole failed; per-location and per-record problems are in the
// report.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Locations: len(p.locations),
	}
	logger := p.logger.With(slog.String("run_id", report.RunID))

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	logger.Info("run started", slog.Int("locations", report.Locations))

	observations, fetchFailures := p.fetcher.FetchAll(ctx, p.locations)
	report.Fetched = len(observations)
	report.FetchFailures = fetchFailures
	p.metrics.LocationsFetched.Add(float64(len(observations)))
	p.metrics.FetchFailures.Add(float64(len(fetchFailures)))

	facts, transformErrors := p.transformer.Transform(observations)
	report.Transformed = len(facts)
	report.TransformErrors = transformErrors
	p.metrics.FactsTransformed.Add(float64(len(facts)))
	p.metrics.TransformErrors.Add(float64(len(transformErrors)))

	approved, rejections := p.gate.Validate(facts)
	report.Approved = len(approved)
	report.Rejections = rejections
	p.metrics.FactsApproved.Add(float64(len(approved)))
	p.metrics.FactsRejected.Add(float64(len(rejections)))
	for _, rejection := range rejections {
		for _, violation := range rejection.Violations {
			p.metrics.RejectionRules.WithLabelValues(violation.Rule).Inc()
		}
	}

	report.Steps = p.writer.Write(ctx, facts, approved)
	for _, step := range report.Steps {
		p.metrics.StepDuration.WithLabelValues(step.Step).Observe(step.Duration.Seconds())
		if step.Failed() {
			p.metrics.StepFailures.WithLabelValues(step.Step).Inc()
			continue
		}
		if step.Step == store.StepHistorical && step.Records > 0 {
			p.metrics.HistoricalRows.Set(float64(step.Records))
		}
	}

	report.FinishedAt = time.Now().UTC()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())

	err := report.Err()
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("failed").Inc()
		p.metrics.LastRunSuccess.Set(0)
		logger.Error("run failed", slog.String("error", err.Error()))
	} else {
		p.metrics.RunsTotal.WithLabelValues("succeeded").Inc()
		p.metrics.LastRunSuccess.Set(1)
		logger.Info("run complete",
			slog.Int("fetched", report.Fetched),
			slog.Int("transformed", report.Transformed),
			slog.Int("approved", report.Approved),
			slog.Int("rejected", report.Rejected()),
			slog.Duration("duration", report.Duration()))
	}

	p.lastReport.Store(report)
	p.notify(ctx, report, logger)
	return report, err
}

func (p *Pipeline) notify(ctx context.Context, report *RunReport, logger *slog.Logger) {
	if p.notifier == nil || !report.Alertworthy() {
		return
	}
	if err := p.notifier.Notify(ctx, report); err != nil {
		logger.Warn("alert delivery failed", slog.String("error", err.Error()))
	}
}
