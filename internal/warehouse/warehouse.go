// Package warehouse loads quality-approved facts into an analytics
// database. Both backends keep the same contract: the table lives at
// analytics.weather_facts, extraction_id is the primary key, and columns
// are only ever added, never dropped or retyped.
package warehouse

import (
	"fmt"
	"regexp"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
)

const (
	schemaName     = "analytics"
	tableName      = "weather_facts"
	qualifiedTable = schemaName + "." + tableName
)

// Column names reach DDL verbatim, so anything beyond lowercase snake case
// is refused outright rather than quoted around.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validateColumns(columns []dataset.Column) error {
	for _, c := range columns {
		if !identifierPattern.MatchString(c.Name) {
			return fmt.Errorf("unsafe column name %q", c.Name)
		}
	}
	return nil
}

func sqliteType(k dataset.Kind) string {
	switch k {
	case dataset.KindFloat:
		return "REAL"
	case dataset.KindInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func postgresType(k dataset.Kind) string {
	switch k {
	case dataset.KindFloat:
		return "DOUBLE PRECISION"
	case dataset.KindInt:
		return "BIGINT"
	default:
		return "TEXT"
	}
}
