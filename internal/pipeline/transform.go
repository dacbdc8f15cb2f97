package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

// Transform is the production Transformer. It decodes each observation
// payload against the schema, builds the fact, and stamps the source
// version. A payload that cannot be decoded drops that one record.
type Transform struct {
	sourceVersion string
	logger        *slog.Logger
}

func NewTransform(sourceVersion string, logger *slog.Logger) *Transform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transform{sourceVersion: sourceVersion, logger: logger}
}

func (t *Transform) Transform(observations []domain.Observation) ([]domain.WeatherFact, []domain.TransformError) {
	facts := make([]domain.WeatherFact, 0, len(observations))
	var failures []domain.TransformError

	for i := range observations {
		obs := observations[i]
		payload, err := domain.DecodePayload(obs.Body)
		if err != nil {
			failures = append(failures, domain.TransformError{LocationID: obs.Location.ID, Err: err})
			t.logger.Warn("observation dropped",
				slog.String("location_id", obs.Location.ID),
				slog.String("error", err.Error()))
			continue
		}
		fact, err := domain.BuildFact(obs, payload)
		if err != nil {
			failures = append(failures, domain.TransformError{LocationID: obs.Location.ID, Err: err})
			t.logger.Warn("observation dropped",
				slog.String("location_id", obs.Location.ID),
				slog.String("error", err.Error()))
			continue
		}
		fact.SourceVersion = t.sourceVersion
		facts = append(facts, fact)
	}
	return facts, failures
}
