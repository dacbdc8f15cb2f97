// Package quality screens transformed facts before anything is persisted.
// The gate classifies each record as accepted or rejected; it never mutates
// facts and never fails a whole batch for one bad record.
package quality

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

// Rule names attached to violations.
const (
	RuleRequiredField = "required_field"
	RuleRange         = "range"
	RuleDuplicateID   = "duplicate_id"
)

// Violation describes one failed quality rule for one fact.
type Violation struct {
	Rule   string
	Field  string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Rule, v.Field, v.Detail)
}

// Rejection pairs a fact with the violations that excluded it.
type Rejection struct {
	Fact       domain.WeatherFact
	Violations []Violation
}

// Range bounds a metric column. A nil end is unbounded.
type Range struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

// Gate validates a batch of facts against required-field, range, and
// duplicate-identity rules.
type Gate struct {
	ranges  map[string]Range
	columns []string // range columns in deterministic order
	logger  *slog.Logger
}

// NewGate creates a Gate with per-metric-column ranges.
func NewGate(ranges map[string]Range, logger *slog.Logger) *Gate {
	columns := make([]string, 0, len(ranges))
	for col := range ranges {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return &Gate{ranges: ranges, columns: columns, logger: logger}
}

// Validate partitions facts into accepted and rejected, preserving input
// order in both. A metric absent from a fact passes its range rule; absence
// means the API reported null, which is tolerated, unlike a measured value
// outside its physical range. Duplicate extraction IDs inside the batch
// reject every fact involved, because the gate cannot know which one is
// authoritative.
func (g *Gate) Validate(facts []domain.WeatherFact) ([]domain.WeatherFact, []Rejection) {
	idCounts := make(map[string]int, len(facts))
	for i := range facts {
		idCounts[facts[i].ExtractionID]++
	}

	accepted := make([]domain.WeatherFact, 0, len(facts))
	var rejected []Rejection

	for i := range facts {
		violations := g.check(facts[i], idCounts)
		if len(violations) == 0 {
			accepted = append(accepted, facts[i])
			continue
		}
		g.logger.Warn("quality gate rejected fact",
			"extraction_id", facts[i].ExtractionID,
			"location", facts[i].LocationID,
			"violations", len(violations),
			"first", violations[0].String(),
		)
		rejected = append(rejected, Rejection{Fact: facts[i], Violations: violations})
	}
	return accepted, rejected
}

func (g *Gate) check(fact domain.WeatherFact, idCounts map[string]int) []Violation {
	var violations []Violation

	// State is not required; locations outside the US legitimately have none.
	required := []struct {
		field   string
		present bool
	}{
		{"extraction_id", fact.ExtractionID != ""},
		{"event_time_utc", !fact.EventTime.IsZero()},
		{"location_city", fact.City != ""},
		{"weather_code", fact.WeatherCode != nil},
	}
	for _, r := range required {
		if !r.present {
			violations = append(violations, Violation{
				Rule:   RuleRequiredField,
				Field:  r.field,
				Detail: "missing required field",
			})
		}
	}

	for _, column := range g.columns {
		value, ok := fact.Metric(column)
		if !ok {
			continue
		}
		bounds := g.ranges[column]
		if bounds.Min != nil && value < *bounds.Min {
			violations = append(violations, Violation{
				Rule:   RuleRange,
				Field:  column,
				Detail: fmt.Sprintf("value %g below minimum %g", value, *bounds.Min),
			})
		}
		if bounds.Max != nil && value > *bounds.Max {
			violations = append(violations, Violation{
				Rule:   RuleRange,
				Field:  column,
				Detail: fmt.Sprintf("value %g above maximum %g", value, *bounds.Max),
			})
		}
	}

	if fact.ExtractionID != "" && idCounts[fact.ExtractionID] > 1 {
		violations = append(violations, Violation{
			Rule:   RuleDuplicateID,
			Field:  "extraction_id",
			Detail: fmt.Sprintf("extraction_id %s appears %d times in batch", fact.ExtractionID, idCounts[fact.ExtractionID]),
		})
	}

	return violations
}
