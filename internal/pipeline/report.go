package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/acquire"
	"github.com/couchcryptid/weather-data-etl/internal/domain"
	"github.com/couchcryptid/weather-data-etl/internal/quality"
	"github.com/couchcryptid/weather-data-etl/internal/store"
)

// RunReport is the complete account of one pipeline run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Locations   int
	Fetched     int
	Transformed int
	Approved    int

	FetchFailures   []acquire.AcquisitionError
	TransformErrors []domain.TransformError
	Rejections      []quality.Rejection
	Steps           []store.StepResult
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Rejected returns the number of facts the quality gate refused.
func (r *RunReport) Rejected() int { return len(r.Rejections) }

// Failed reports whether the run as a whole was unsuccessful: nothing could
// be fetched, or a load-bearing persistence step broke. The historical
// dataset and the warehouse are what downstream consumers read; a raw or
// curated failure degrades the run without failing it.
func (r *RunReport) Failed() bool {
	return len(r.failures()) > 0
}

// Err returns nil for a successful run, or an error naming every reason
// the run failed.
func (r *RunReport) Err() error {
	failures := r.failures()
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("run %s failed: %s", r.RunID, strings.Join(failures, "; "))
}

func (r *RunReport) failures() []string {
	var out []string
	if r.Locations > 0 && r.Fetched == 0 {
		out = append(out, "no locations could be fetched")
	}
	for _, step := range r.Steps {
		if !step.Failed() {
			continue
		}
		if step.Step == store.StepHistorical || step.Step == store.StepWarehouse {
			out = append(out, fmt.Sprintf("step %s: %v", step.Step, step.Err))
		}
	}
	return out
}

// Alertworthy reports whether the run merits operator attention: a failed
// run, any location that could not be fetched, or any rejected fact.
func (r *RunReport) Alertworthy() bool {
	return r.Failed() || len(r.FetchFailures) > 0 || len(r.Rejections) > 0 || len(r.TransformErrors) > 0
}

// Summary renders a one-line account for alerts and logs.
func (r *RunReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: fetched %d/%d locations, approved %d/%d facts",
		r.RunID, r.Fetched, r.Locations, r.Approved, r.Transformed)
	if n := len(r.TransformErrors); n > 0 {
		fmt.Fprintf(&b, ", %d transform errors", n)
	}
	if n := r.Rejected(); n > 0 {
		fmt.Fprintf(&b, ", %d rejected", n)
	}
	for _, step := range r.Steps {
		if step.Failed() {
			fmt.Fprintf(&b, "; step %s failed: %v", step.Step, step.Err)
		}
	}
	if r.Failed() {
		b.WriteString(" [FAILED]")
	}
	return b.String()
}
