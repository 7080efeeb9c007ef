package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything gathered by g to a Prometheus Pushgateway under job.
// Short-lived CLI runs use it instead of exposing a scrape endpoint.
func Push(ctx context.Context, pushgatewayURL, job string, g prometheus.Gatherer) error {
	if pushgatewayURL == "" {
		return nil
	}
	if err := push.New(pushgatewayURL, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", pushgatewayURL, err)
	}
	return nil
}
