package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce        sync.Once
	submissionsCounter metric.Int64Counter
	refreshCounter     metric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter(ServiceName)

	var err error
	submissionsCounter, err = meter.Int64Counter("filing.submissions",
		metric.WithDescription("Quarterly submissions accepted by the authority"))
	if err != nil {
		submissionsCounter = nil
	}
	refreshCounter, err = meter.Int64Counter("hmrc.token_refreshes",
		metric.WithDescription("OAuth token refresh attempts"))
	if err != nil {
		refreshCounter = nil
	}
}

// CountSubmission records one accepted submission.
func CountSubmission(ctx context.Context, businessType string, cumulative bool) {
	metricsOnce.Do(initMetrics)
	if submissionsCounter == nil {
		return
	}
	submissionsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("business_type", businessType),
		attribute.Bool("cumulative", cumulative),
	))
}

// CountTokenRefresh records one token refresh attempt and its outcome.
func CountTokenRefresh(ctx context.Context, success bool) {
	metricsOnce.Do(initMetrics)
	if refreshCounter == nil {
		return
	}
	refreshCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}
