package store

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

const (
	curatedDir    = "curated"
	partitionBase = "data"
)

// PartitionDir returns the curated directory for one event date.
func PartitionDir(root, eventDate string) string {
	return filepath.Join(root, curatedDir, "event_date="+eventDate)
}

// ReadPartition loads the curated artifact for one event date. A partition
// that was never written comes back empty.
func ReadPartition(root, eventDate string) (dataset.Table, error) {
	return readTable(PartitionDir(root, eventDate), partitionBase)
}

// writePartitions groups approved facts by event date and read-merge-writes
// each partition, so a batch spanning midnight lands in two directories and
// a rerun replaces rows inside each.
func (w *Writer) writePartitions(approved []domain.WeatherFact) (int, error) {
	if len(approved) == 0 {
		return 0, nil
	}

	byDate := make(map[string][]domain.WeatherFact)
	for i := range approved {
		date := approved[i].EventDate()
		byDate[date] = append(byDate[date], approved[i])
	}
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	written := 0
	for _, date := range dates {
		facts := byDate[date]
		dir := PartitionDir(w.root, date)
		existing, err := readTable(dir, partitionBase)
		if err != nil {
			return written, fmt.Errorf("partition %s: %w", date, err)
		}
		merged := dataset.Merge(existing, dataset.FromFacts(facts))
		if err := w.writeTable(dir, partitionBase, merged); err != nil {
			return written, fmt.Errorf("partition %s: %w", date, err)
		}
		written += len(facts)
	}
	return written, nil
}
