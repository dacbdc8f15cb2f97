package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushMetrics pushes the default registry to a Pushgateway. One-shot runs
// exit before any scraper comes around, so this is how their counters
// survive the process.
func PushMetrics(ctx context.Context, url, job string) error {
	if err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
