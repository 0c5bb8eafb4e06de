package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for payment metrics
const MeterName = "community-console/payments"

// PaymentMetrics records the payment session workflow
type PaymentMetrics struct {
	sessionsStarted    *Counter
	sessionsClosed     *Counter
	tokenizations      *Counter
	gatewayTimeouts    *Counter
	submissions        *Counter
	submissionDuration *Histogram
}

// NewPaymentMetrics creates the payment instruments on meter
func NewPaymentMetrics(meter metric.Meter) (*PaymentMetrics, error) {
	started, err := NewCounter(meter, "payment_sessions_started_total",
		"Payment sessions opened from the console", "{session}")
	if err != nil {
		return nil, err
	}
	closed, err := NewCounter(meter, "payment_sessions_closed_total",
		"Payment sessions closed, by reason", "{session}")
	if err != nil {
		return nil, err
	}
	tokenizations, err := NewCounter(meter, "payment_card_tokenizations_total",
		"Card tokenization attempts, by source and result", "{card}")
	if err != nil {
		return nil, err
	}
	timeouts, err := NewCounter(meter, "payment_gateway_timeouts_total",
		"Gateway frames that never posted a result", "{frame}")
	if err != nil {
		return nil, err
	}
	submissions, err := NewCounter(meter, "payment_submissions_total",
		"Billing submissions, by outcome", "{submission}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "payment_submission_duration_seconds",
		Description: "Time spent waiting on billing for a submission",
		Unit:        "s",
		Boundaries:  GatewayDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &PaymentMetrics{
		sessionsStarted:    started,
		sessionsClosed:     closed,
		tokenizations:      tokenizations,
		gatewayTimeouts:    timeouts,
		submissions:        submissions,
		submissionDuration: duration,
	}, nil
}

// RegisterOpenSessionsGauge reports count() as payment_sessions_open on
// every collection
func RegisterOpenSessionsGauge(meter metric.Meter, count func() int) error {
	_, err := meter.Int64ObservableGauge("payment_sessions_open",
		metric.WithDescription("Payment sessions currently held in memory"),
		metric.WithUnit("{session}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	return err
}

func (m *PaymentMetrics) RecordSessionStarted(ctx context.Context) {
	m.sessionsStarted.Inc(ctx)
}

func (m *PaymentMetrics) RecordSessionClosed(ctx context.Context, reason string) {
	m.sessionsClosed.Inc(ctx, AttrCloseReason.String(reason))
}

func (m *PaymentMetrics) RecordTokenization(ctx context.Context, source, result string) {
	m.tokenizations.Inc(ctx, AttrTokenSource.String(source), AttrTokenResult.String(result))
}

func (m *PaymentMetrics) RecordGatewayTimeout(ctx context.Context) {
	m.gatewayTimeouts.Inc(ctx)
}

func (m *PaymentMetrics) RecordSubmission(ctx context.Context, outcome string, duration time.Duration) {
	m.submissions.Inc(ctx, AttrOutcome.String(outcome))
	m.submissionDuration.RecordDuration(ctx, duration, AttrOutcome.String(outcome))
}
