// Package query answers analyst questions against the historical dataset.
// The dataset is loaded into an embedded in-memory SQLite database, so the
// canned questions and ad hoc SQL both run against the same
// analytics.weather_facts table the warehouse exposes.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/warehouse"
)

// Engine runs read-only queries over one loaded dataset.
type Engine struct {
	wh     *warehouse.SQLite
	logger *slog.Logger
}

// Open loads the table into a fresh in-memory database.
func Open(ctx context.Context, table dataset.Table, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wh, err := warehouse.OpenSQLite(":memory:", logger)
	if err != nil {
		return nil, err
	}
	if _, err := wh.UpsertFacts(ctx, table); err != nil {
		wh.Close()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return &Engine{wh: wh, logger: logger}, nil
}

func (e *Engine) Close() error { return e.wh.Close() }

// Result is a displayable query result.
type Result struct {
	Columns []string
	Rows    [][]string
}

// Latest returns the most recent observations, newest first, optionally
// filtered to one city.
func (e *Engine) Latest(ctx context.Context, city string, limit int) (Result, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT location_city, location_state, event_time_utc, temperature_celsius, weather_description
		FROM analytics.weather_facts`
	args := []any{}
	if city != "" {
		q += ` WHERE location_city = ?`
		args = append(args, city)
	}
	q += ` ORDER BY event_time_utc DESC LIMIT ?`
	args = append(args, limit)
	return e.run(ctx, q, args...)
}

// AverageTemperature aggregates mean temperature per city, optionally from
// a starting event date (YYYY-MM-DD) onward.
func (e *Engine) AverageTemperature(ctx context.Context, sinceDate string) (Result, error) {
	q := `SELECT location_city, round(avg(temperature_celsius), 1) AS avg_temperature_celsius, count(*) AS observations
		FROM analytics.weather_facts`
	args := []any{}
	if sinceDate != "" {
		q += ` WHERE event_date >= ?`
		args = append(args, sinceDate)
	}
	q += ` GROUP BY location_city ORDER BY avg_temperature_celsius DESC`
	return e.run(ctx, q, args...)
}

// RainyObservations lists observations at or above a precipitation
// threshold in millimeters, wettest first.
func (e *Engine) RainyObservations(ctx context.Context, minPrecipMM float64) (Result, error) {
	q := `SELECT event_date, location_city, precipitation_mm, weather_description
		FROM analytics.weather_facts
		WHERE precipitation_mm >= ?
		ORDER BY precipitation_mm DESC, event_date DESC`
	return e.run(ctx, q, minPrecipMM)
}

// ByCity returns every stored fact for one city in event order.
func (e *Engine) ByCity(ctx context.Context, city string) (Result, error) {
	q := `SELECT * FROM analytics.weather_facts WHERE location_city = ? ORDER BY event_time_utc`
	return e.run(ctx, q, city)
}

// SQL runs one ad hoc read-only statement. Anything that is not a single
// SELECT (or WITH ... SELECT) is refused.
func (e *Engine) SQL(ctx context.Context, stmt string) (Result, error) {
	if err := checkReadOnly(stmt); err != nil {
		return Result{}, err
	}
	return e.run(ctx, stmt)
}

func checkReadOnly(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}
	if i := strings.Index(trimmed, ";"); i >= 0 && strings.TrimSpace(trimmed[i+1:]) != "" {
		return fmt.Errorf("only a single statement is allowed")
	}
	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	return nil
}

func (e *Engine) run(ctx context.Context, q string, args ...any) (Result, error) {
	rows, err := e.wh.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}

	result := Result{Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan: %w", err)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
