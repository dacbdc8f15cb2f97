// Package dataset holds the tabular model shared by partition artifacts, the
// historical dataset, and the warehouse loader: ordered typed columns, rows
// keyed by column name, and a merge that unions columns and dedupes rows by
// extraction identity.
package dataset

import (
	"sort"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

// Dataset column names for the fixed identity prefix. Metric columns follow
// these, named by domain.MetricColumn.
const (
	ColExtractionID  = "extraction_id"
	ColLocationID    = "location_id"
	ColCity          = "location_city"
	ColState         = "location_state"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	ColEventTime     = "event_time_utc"
	ColEventDate     = "event_date"
	ColRecordedAt    = "recorded_at_utc"
	ColRequestedAt   = "request_time_utc"
	ColWeatherCode   = "weather_code"
	ColDescription   = "weather_description"
	ColSourceVersion = "source_version"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
)

// Column is a named, typed dataset column.
type Column struct {
	Name string
	Kind Kind
}

// Row maps column names to values. Values are string, float64, int64, or
// absent; an absent key is a null.
type Row map[string]any

// Table is an ordered set of columns plus rows. Column order is part of the
// artifact contract: identity columns first, then metric columns, with
// columns added by later runs appended at the end so existing positions
// never shift.
type Table struct {
	Columns []Column
	Rows    []Row
}

// identityColumns is the fixed prefix every fact table starts with.
var identityColumns = []Column{
	{Name: ColExtractionID, Kind: KindString},
	{Name: ColLocationID, Kind: KindString},
	{Name: ColCity, Kind: KindString},
	{Name: ColState, Kind: KindString},
	{Name: ColLatitude, Kind: KindFloat},
	{Name: ColLongitude, Kind: KindFloat},
	{Name: ColEventTime, Kind: KindString},
	{Name: ColEventDate, Kind: KindString},
	{Name: ColRecordedAt, Kind: KindString},
	{Name: ColRequestedAt, Kind: KindString},
	{Name: ColWeatherCode, Kind: KindInt},
	{Name: ColDescription, Kind: KindString},
	{Name: ColSourceVersion, Kind: KindString},
}

// IsEmpty reports whether the table has no rows.
func (t Table) IsEmpty() bool { return len(t.Rows) == 0 }

// ColumnNames returns the column names in table order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table carries the named column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// FromFacts builds a table from quality-approved facts. Metric columns are
// the sorted union of metric names across the batch, so two facts with
// different null patterns still land in one coherent schema.
func FromFacts(facts []domain.WeatherFact) Table {
	metricSet := make(map[string]struct{})
	for i := range facts {
		for name := range facts[i].Metrics {
			metricSet[name] = struct{}{}
		}
	}
	metricNames := make([]string, 0, len(metricSet))
	for name := range metricSet {
		metricNames = append(metricNames, name)
	}
	sort.Strings(metricNames)

	columns := make([]Column, 0, len(identityColumns)+len(metricNames))
	columns = append(columns, identityColumns...)
	for _, name := range metricNames {
		columns = append(columns, Column{Name: name, Kind: KindFloat})
	}

	rows := make([]Row, 0, len(facts))
	for i := range facts {
		rows = append(rows, rowFromFact(facts[i]))
	}

	t := Table{Columns: columns, Rows: rows}
	t.sortRows()
	return t
}

func rowFromFact(f domain.WeatherFact) Row {
	row := Row{
		ColExtractionID: f.ExtractionID,
		ColLocationID:   f.LocationID,
		ColCity:         f.City,
		ColState:        f.State,
		ColLatitude:     f.Latitude,
		ColLongitude:    f.Longitude,
		ColEventTime:    f.EventTime.UTC().Format(time.RFC3339),
		ColEventDate:    f.EventDate(),
		ColRecordedAt:   f.RecordedAt.UTC().Format(time.RFC3339),
		ColDescription:  f.Description,
	}
	if !f.RequestedAt.IsZero() {
		row[ColRequestedAt] = f.RequestedAt.UTC().Format(time.RFC3339)
	}
	if f.WeatherCode != nil {
		row[ColWeatherCode] = *f.WeatherCode
	}
	if f.SourceVersion != "" {
		row[ColSourceVersion] = f.SourceVersion
	}
	for name, value := range f.Metrics {
		row[name] = value
	}
	return row
}

// Merge combines an existing table with an incoming one. Columns are the
// union, existing order first and new columns appended; a column present in
// both keeps the existing kind, so types never change. Rows dedupe by
// extraction_id with the newer recorded_at_utc winning; on a tie the
// incoming row wins, since a rerun exists to replace what an earlier run
// wrote. Rows missing from a table's columns read as null.
func Merge(existing, incoming Table) Table {
	columns := make([]Column, 0, len(existing.Columns)+len(incoming.Columns))
	seen := make(map[string]struct{}, len(existing.Columns))
	for _, c := range existing.Columns {
		columns = append(columns, c)
		seen[c.Name] = struct{}{}
	}
	for _, c := range incoming.Columns {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		columns = append(columns, c)
		seen[c.Name] = struct{}{}
	}

	merged := make(map[string]Row, len(existing.Rows)+len(incoming.Rows))
	for _, row := range existing.Rows {
		if id, ok := rowID(row); ok {
			merged[id] = row
		}
	}
	for _, row := range incoming.Rows {
		id, ok := rowID(row)
		if !ok {
			continue
		}
		if prev, exists := merged[id]; exists && recordedAfter(prev, row) {
			continue
		}
		merged[id] = row
	}

	rows := make([]Row, 0, len(merged))
	for _, row := range merged {
		rows = append(rows, row)
	}

	t := Table{Columns: columns, Rows: rows}
	t.sortRows()
	return t
}

func rowID(row Row) (string, bool) {
	id, ok := row[ColExtractionID].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// recordedAfter reports whether a was recorded strictly after b. RFC 3339
// UTC timestamps compare correctly as strings.
func recordedAfter(a, b Row) bool {
	at, aok := a[ColRecordedAt].(string)
	bt, bok := b[ColRecordedAt].(string)
	if !aok || !bok {
		return false
	}
	return at > bt
}

// sortRows orders rows by observation time then extraction ID so merged
// artifacts are byte-stable across reruns.
func (t Table) sortRows() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		ti, _ := t.Rows[i][ColEventTime].(string)
		tj, _ := t.Rows[j][ColEventTime].(string)
		if ti != tj {
			return ti < tj
		}
		idi, _ := t.Rows[i][ColExtractionID].(string)
		idj, _ := t.Rows[j][ColExtractionID].(string)
		return idi < idj
	})
}
