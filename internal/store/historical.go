package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

const (
	historicalDir  = "historical"
	historicalBase = "weather_dataset"

	lockRetryDelay = 100 * time.Millisecond
)

// ReadHistorical loads the accumulated dataset. Missing artifacts come back
// as an empty table.
func ReadHistorical(root string) (dataset.Table, error) {
	return readTable(filepath.Join(root, historicalDir), historicalBase)
}

// writeHistorical merges approved facts into the accumulated dataset under
// an advisory file lock. The lock covers the whole read-merge-replace
// sequence; two runs racing on the same host serialize here instead of
// losing each other's rows. The record count is the dataset size after the
// merge, not the batch size.
func (w *Writer) writeHistorical(ctx context.Context, approved []domain.WeatherFact) (int, error) {
	if len(approved) == 0 {
		return 0, nil
	}

	dir := filepath.Join(w.root, historicalDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create historical dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, historicalBase+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("acquire historical lock: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("acquire historical lock: not acquired")
	}
	defer lock.Unlock()

	existing, err := readTable(dir, historicalBase)
	if err != nil {
		return 0, err
	}
	merged := dataset.Merge(existing, dataset.FromFacts(approved))
	if err := w.writeTable(dir, historicalBase, merged); err != nil {
		return 0, err
	}
	return len(merged.Rows), nil
}
