// Package store persists pipeline output across the three file layers (raw
// payloads, curated date partitions, the historical dataset) and hands
// approved facts to the warehouse. Every layer is keyed by extraction
// identity, so rerunning a batch replaces records instead of duplicating
// them.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

// Step names reported in run summaries and metrics.
const (
	StepRaw        = "raw_payloads"
	StepPartitions = "curated_partitions"
	StepHistorical = "historical_dataset"
	StepWarehouse  = "warehouse"
)

// Warehouse loads approved facts into an analytics database.
type Warehouse interface {
	Name() string
	UpsertFacts(ctx context.Context, table dataset.Table) (int, error)
}

// StepResult records the outcome of one persistence step.
type StepResult struct {
	Step     string
	Records  int
	Duration time.Duration
	Err      error
}

// Failed reports whether the step returned an error.
func (r StepResult) Failed() bool { return r.Err != nil }

// Options configures a Writer. Warehouse is optional; without one the
// warehouse step is skipped.
type Options struct {
	Root      string
	Warehouse Warehouse
	Logger    *slog.Logger
}

// Writer persists one batch across all storage layers.
type Writer struct {
	root      string
	warehouse Warehouse
	logger    *slog.Logger
}

func NewWriter(opts Options) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{root: opts.Root, warehouse: opts.Warehouse, logger: logger}
}

// Write runs every persistence step, continuing past failures so one broken
// layer cannot block the others. Raw payloads are written for every
// transformed fact, rejected ones included, so a quality failure never
// loses source data. The remaining layers only see approved facts.
func (w *Writer) Write(ctx context.Context, transformed, approved []domain.WeatherFact) []StepResult {
	results := make([]StepResult, 0, 4)

	run := func(step string, fn func() (int, error)) {
		start := time.Now()
		n, err := fn()
		elapsed := time.Since(start)
		if err != nil {
			w.logger.Error("persistence step failed",
				slog.String("step", step),
				slog.String("error", err.Error()))
		} else {
			w.logger.Info("persistence step complete",
				slog.String("step", step),
				slog.Int("records", n),
				slog.Duration("duration", elapsed))
		}
		results = append(results, StepResult{Step: step, Records: n, Duration: elapsed, Err: err})
	}

	run(StepRaw, func() (int, error) { return w.writeRaw(transformed) })
	run(StepPartitions, func() (int, error) { return w.writePartitions(approved) })
	run(StepHistorical, func() (int, error) { return w.writeHistorical(ctx, approved) })
	if w.warehouse != nil {
		run(StepWarehouse, func() (int, error) { return w.writeWarehouse(ctx, approved) })
	}
	return results
}

func (w *Writer) writeWarehouse(ctx context.Context, approved []domain.WeatherFact) (int, error) {
	if len(approved) == 0 {
		return 0, nil
	}
	n, err := w.warehouse.UpsertFacts(ctx, dataset.FromFacts(approved))
	if err != nil {
		return 0, fmt.Errorf("warehouse %s: %w", w.warehouse.Name(), err)
	}
	return n, nil
}

// writeTable writes the Arrow artifact and its CSV companion side by side.
func (w *Writer) writeTable(dir, base string, t dataset.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	arrowPath := filepath.Join(dir, base+".arrow")
	if err := writeFileAtomic(arrowPath, func(f io.Writer) error {
		return dataset.WriteArrow(f, t)
	}); err != nil {
		return err
	}
	csvPath := filepath.Join(dir, base+".csv")
	return writeFileAtomic(csvPath, func(f io.Writer) error {
		return dataset.WriteCSV(f, t)
	})
}

// readTable loads an existing artifact pair, preferring the Arrow file. A
// missing artifact is an empty table; a corrupt one is an error, so a bad
// layer fails its step instead of being silently clobbered.
func readTable(dir, base string) (dataset.Table, error) {
	arrowPath := filepath.Join(dir, base+".arrow")
	f, err := os.Open(arrowPath)
	if err == nil {
		defer f.Close()
		t, err := dataset.ReadArrow(f)
		if err != nil {
			return dataset.Table{}, fmt.Errorf("read %s: %w", arrowPath, err)
		}
		return t, nil
	}
	if !os.IsNotExist(err) {
		return dataset.Table{}, fmt.Errorf("open %s: %w", arrowPath, err)
	}

	csvPath := filepath.Join(dir, base+".csv")
	cf, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return dataset.Table{}, nil
		}
		return dataset.Table{}, fmt.Errorf("open %s: %w", csvPath, err)
	}
	defer cf.Close()
	t, err := dataset.ReadCSV(cf)
	if err != nil {
		return dataset.Table{}, fmt.Errorf("read %s: %w", csvPath, err)
	}
	return t, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place, so readers never observe a half-written artifact.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
