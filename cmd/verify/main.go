// Command verify performs cross-layer integrity checks over the weather data
// store: the historical dataset, curated partitions, raw payload archive, and
// the SQLite warehouse. It recomputes extraction identities, cross-references
// rows between layers, and confirms the Arrow and CSV artifacts agree.
//
// Usage:
//
//	go run ./cmd/verify -config config/config.yaml
//	go run ./cmd/verify -root ./data
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/config"
	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
	"github.com/couchcryptid/weather-data-etl/internal/store"
	"github.com/couchcryptid/weather-data-etl/internal/warehouse"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./config.yaml, ./config/config.yaml)")
	rootFlag := flag.String("root", "", "storage root (default: storage.root from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	root := *rootFlag
	if root == "" {
		root = cfg.Storage.Root
	}

	if code := run(root, cfg); code != 0 {
		os.Exit(code)
	}
}

func run(root string, cfg *config.Config) int {
	fmt.Println("=== Weather Dataset Integrity Check ===")
	fmt.Println()

	historical, err := store.ReadHistorical(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read historical dataset: %v\n", err)
		return 1
	}
	if historical.IsEmpty() {
		fmt.Fprintf(os.Stderr, "FATAL: historical dataset under %s is empty\n", root)
		return 1
	}

	dates, partitions, err := loadPartitions(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load curated partitions: %v\n", err)
		return 1
	}

	phases := []*phase{
		verifyIdentity(historical),
		verifyPartitionParity(historical, dates, partitions),
		verifyArtifactParity(root, dates),
		verifyRawCoverage(root, historical),
	}
	if cfg.Warehouse.Driver == "sqlite" {
		phases = append(phases, verifyWarehouse(cfg, historical))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-46s %s\n", p.name, status)
	}

	partRows := 0
	for _, t := range partitions {
		partRows += len(t.Rows)
	}
	fmt.Println()
	fmt.Printf("Records: %d historical rows, %d partitions, %d partition rows\n",
		len(historical.Rows), len(partitions), partRows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nIntegrity check FAILED.")
	return 1
}

func loadPartitions(root string) ([]string, map[string]dataset.Table, error) {
	entries, err := os.ReadDir(filepath.Join(root, "curated"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, map[string]dataset.Table{}, nil
		}
		return nil, nil, err
	}

	var dates []string
	tables := make(map[string]dataset.Table)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "event_date=") {
			continue
		}
		date := strings.TrimPrefix(e.Name(), "event_date=")
		t, err := store.ReadPartition(root, date)
		if err != nil {
			return nil, nil, fmt.Errorf("partition %s: %w", date, err)
		}
		dates = append(dates, date)
		tables[date] = t
	}
	sort.Strings(dates)
	return dates, tables, nil
}

// ── Phase 1: Identity ──
// Every historical row must carry a unique extraction_id that matches the
// hash of its location and observation minute, and rows must be sorted.

func verifyIdentity(historical dataset.Table) *phase {
	p := &phase{name: "Phase 1: Identity (historical dataset)"}

	seen := map[string]int{}
	var prevTime, prevID string
	for i, row := range historical.Rows {
		id, _ := row[dataset.ColExtractionID].(string)
		if id == "" {
			p.errorf("row %d: missing extraction_id", i)
			continue
		}
		if first, dup := seen[id]; dup {
			p.errorf("row %d: duplicate extraction_id %s (first at row %d)", i, id, first)
		}
		seen[id] = i

		locID, _ := row[dataset.ColLocationID].(string)
		eventTime, _ := row[dataset.ColEventTime].(string)
		ts, err := time.Parse(time.RFC3339, eventTime)
		if err != nil {
			p.errorf("row %d (%s): bad event_time_utc %q: %v", i, id, eventTime, err)
			continue
		}
		if want := domain.NewExtractionID(locID, ts); want != id {
			p.errorf("row %d: extraction_id %s does not match recomputed %s", i, id, want)
		}
		if eventDate, _ := row[dataset.ColEventDate].(string); eventDate != ts.UTC().Format("2006-01-02") {
			p.errorf("row %d (%s): event_date %s does not match event time %s", i, id, eventDate, eventTime)
		}
		if eventTime < prevTime || (eventTime == prevTime && id < prevID) {
			p.errorf("row %d (%s): out of order after (%s, %s)", i, id, prevTime, prevID)
		}
		prevTime, prevID = eventTime, id
	}
	return p
}

// ── Phase 2: Partition Parity ──
// Curated partition rows and historical rows must agree in both directions.
// A mismatch usually means a run failed between layers; re-running the etl
// command heals it.

func verifyPartitionParity(historical dataset.Table, dates []string, partitions map[string]dataset.Table) *phase {
	p := &phase{name: "Phase 2: Partition Parity (curated vs historical)"}

	histByID := indexByID(historical)
	partitioned := map[string]bool{}

	for _, date := range dates {
		t := partitions[date]
		for i, row := range t.Rows {
			id, _ := row[dataset.ColExtractionID].(string)
			if id == "" {
				p.errorf("partition %s row %d: missing extraction_id", date, i)
				continue
			}
			partitioned[id] = true

			if rowDate, _ := row[dataset.ColEventDate].(string); rowDate != date {
				p.errorf("partition %s: row %s has event_date %q", date, id, rowDate)
			}

			hrow, ok := histByID[id]
			if !ok {
				p.errorf("partition %s: row %s missing from historical dataset", date, id)
				continue
			}
			for _, col := range t.ColumnNames() {
				if got, want := cellString(row[col]), cellString(hrow[col]); got != want {
					p.errorf("partition %s: row %s column %s: partition=%q, historical=%q", date, id, col, got, want)
				}
			}
		}
	}

	for id := range histByID {
		if !partitioned[id] {
			p.errorf("historical row %s has no curated partition row", id)
		}
	}
	return p
}

// ── Phase 3: Artifact Parity ──
// The Arrow and CSV renditions of each layer must describe the same table.

func verifyArtifactParity(root string, dates []string) *phase {
	p := &phase{name: "Phase 3: Artifact Parity (arrow vs csv)"}
	for _, date := range dates {
		compareArtifacts(p, store.PartitionDir(root, date), "data")
	}
	compareArtifacts(p, filepath.Join(root, "historical"), "weather_dataset")
	return p
}

func compareArtifacts(p *phase, dir, base string) {
	label := filepath.Base(dir)

	arrowTable, arrowErr := readArrowFile(filepath.Join(dir, base+".arrow"))
	csvTable, csvErr := readCSVFile(filepath.Join(dir, base+".csv"))

	switch {
	case arrowErr != nil && csvErr != nil:
		p.errorf("%s: no readable artifacts: arrow: %v; csv: %v", label, arrowErr, csvErr)
		return
	case arrowErr != nil:
		p.errorf("%s: arrow artifact unreadable: %v", label, arrowErr)
		return
	case csvErr != nil:
		p.errorf("%s: csv artifact unreadable: %v", label, csvErr)
		return
	}

	if len(arrowTable.Rows) != len(csvTable.Rows) {
		p.errorf("%s: arrow has %d rows, csv has %d", label, len(arrowTable.Rows), len(csvTable.Rows))
		return
	}
	if a, c := strings.Join(arrowTable.ColumnNames(), ","), strings.Join(csvTable.ColumnNames(), ","); a != c {
		p.errorf("%s: column mismatch: arrow=[%s] csv=[%s]", label, a, c)
		return
	}
	for i := range arrowTable.Rows {
		for _, col := range arrowTable.ColumnNames() {
			if got, want := cellString(csvTable.Rows[i][col]), cellString(arrowTable.Rows[i][col]); got != want {
				p.errorf("%s row %d column %s: csv=%q, arrow=%q", label, i, col, got, want)
			}
		}
	}
}

func readArrowFile(path string) (dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataset.Table{}, err
	}
	defer f.Close()
	return dataset.ReadArrow(f)
}

func readCSVFile(path string) (dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataset.Table{}, err
	}
	defer f.Close()
	return dataset.ReadCSV(f)
}

// ── Phase 4: Raw Coverage ──
// Every historical fact must have its source payload archived, and the
// archived payload must still validate against the observation schema.

func verifyRawCoverage(root string, historical dataset.Table) *phase {
	p := &phase{name: "Phase 4: Raw Coverage (payload archive)"}
	for i, row := range historical.Rows {
		id, _ := row[dataset.ColExtractionID].(string)
		if id == "" {
			continue // reported in phase 1
		}
		raw, err := os.ReadFile(store.RawPayloadPath(root, id))
		if err != nil {
			p.errorf("row %d (%s): raw payload missing: %v", i, id, err)
			continue
		}
		if _, err := domain.DecodePayload(raw); err != nil {
			p.errorf("row %d (%s): archived payload invalid: %v", i, id, err)
		}
	}
	return p
}

// ── Phase 5: Warehouse Parity ──
// The SQLite warehouse must hold exactly the historical extraction IDs.

func verifyWarehouse(cfg *config.Config, historical dataset.Table) *phase {
	p := &phase{name: "Phase 5: Warehouse Parity (sqlite)"}

	path := cfg.Warehouse.SQLite.Path
	if _, err := os.Stat(path); err != nil {
		p.errorf("warehouse database %s: %v", path, err)
		return p
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	wh, err := warehouse.OpenSQLite(path, logger)
	if err != nil {
		p.errorf("open warehouse %s: %v", path, err)
		return p
	}
	defer wh.Close()

	rows, err := wh.DB().QueryContext(context.Background(), "SELECT extraction_id FROM analytics.weather_facts")
	if err != nil {
		p.errorf("query warehouse: %v", err)
		return p
	}
	defer rows.Close()

	inWarehouse := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			p.errorf("scan warehouse row: %v", err)
			return p
		}
		inWarehouse[id] = true
	}
	if err := rows.Err(); err != nil {
		p.errorf("iterate warehouse rows: %v", err)
		return p
	}

	histByID := indexByID(historical)
	for id := range histByID {
		if !inWarehouse[id] {
			p.errorf("historical row %s missing from warehouse", id)
		}
	}
	for id := range inWarehouse {
		if _, ok := histByID[id]; !ok {
			p.errorf("warehouse row %s missing from historical dataset", id)
		}
	}
	return p
}

// ── Helpers ──

func indexByID(t dataset.Table) map[string]dataset.Row {
	idx := make(map[string]dataset.Row, len(t.Rows))
	for _, row := range t.Rows {
		if id, _ := row[dataset.ColExtractionID].(string); id != "" {
			idx[id] = row
		}
	}
	return idx
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
