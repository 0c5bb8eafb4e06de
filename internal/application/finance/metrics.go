package finance

import (
	"context"
	"time"

	"github.com/community/console/internal/infrastructure/telemetry"
)

// PaymentMetricsRecorder receives payment workflow measurements.
// telemetry.PaymentMetrics is the production implementation.
type PaymentMetricsRecorder interface {
	RecordSessionStarted(ctx context.Context)
	RecordSessionClosed(ctx context.Context, reason string)
	RecordTokenization(ctx context.Context, source, result string)
	RecordGatewayTimeout(ctx context.Context)
	RecordSubmission(ctx context.Context, outcome string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordSessionStarted(context.Context) {}
func (noopMetrics) RecordSessionClosed(context.Context, string) {}
func (noopMetrics) RecordTokenization(context.Context, string, string) {}
func (noopMetrics) RecordGatewayTimeout(context.Context) {}
func (noopMetrics) RecordSubmission(context.Context, string, time.Duration) {}

var _ PaymentMetricsRecorder = (*telemetry.PaymentMetrics)(nil)
