package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

const rawDir = "raw"

// RawPayloadPath returns where the source payload for an extraction lives.
func RawPayloadPath(root, extractionID string) string {
	return filepath.Join(root, rawDir, fmt.Sprintf("weather_raw_%s.json", extractionID))
}

// writeRaw archives each fact's source payload under its extraction ID.
// Rerunning a batch overwrites the same files, leaving one payload per
// observation no matter how many times it was fetched.
func (w *Writer) writeRaw(transformed []domain.WeatherFact) (int, error) {
	if len(transformed) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(filepath.Join(w.root, rawDir), 0o755); err != nil {
		return 0, fmt.Errorf("create raw dir: %w", err)
	}

	written := 0
	for i := range transformed {
		fact := transformed[i]
		if len(fact.Raw) == 0 {
			continue
		}
		path := RawPayloadPath(w.root, fact.ExtractionID)
		if err := writeFileAtomic(path, func(f io.Writer) error {
			_, err := f.Write(fact.Raw)
			return err
		}); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
