package session

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	outcomeResolved        = "resolved"
	outcomeFallback        = "fallback"
	outcomeCredentialError = "credential_error"
	outcomeStale           = "stale"
	outcomeSignedOut       = "signed_out"
)

type instruments struct {
	outcomes    metric.Int64Counter
	cacheErrors metric.Int64Counter
}

func newInstruments(meter metric.Meter) instruments {
	outcomes, err := meter.Int64Counter(
		"session.reconcile.outcome",
		metric.WithDescription("Reconciliation outcomes by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		log.Printf("session: outcome counter unavailable: %v", err)
		outcomes, _ = noop.NewMeterProvider().Meter("").Int64Counter("")
	}

	cacheErrors, err := meter.Int64Counter(
		"session.cache.write_errors",
		metric.WithDescription("Local session cache write failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		log.Printf("session: cache error counter unavailable: %v", err)
		cacheErrors, _ = noop.NewMeterProvider().Meter("").Int64Counter("")
	}

	return instruments{outcomes: outcomes, cacheErrors: cacheErrors}
}

func (i instruments) outcome(ctx context.Context, kind string) {
	i.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", kind)))
}

func (i instruments) cacheWriteError(ctx context.Context) {
	i.cacheErrors.Add(ctx, 1)
}
