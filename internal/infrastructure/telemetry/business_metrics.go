package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Payment outcomes recorded by BusinessMetrics
const (
	PaymentOutcomeCompleted = "completed"
	PaymentOutcomeFailed    = "failed"
	PaymentOutcomeRefunded  = "refunded"
)

// BusinessMetrics holds the product-level counters
type BusinessMetrics struct {
	purchases     *Counter
	payments      *Counter
	paymentAmount *Histogram
	leads         *Counter
	referrals     *Counter
	listings      *Counter
}

// NewBusinessMetrics registers the business instruments on meter
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var (
		bm  BusinessMetrics
		err error
	)
	if bm.purchases, err = NewCounter(meter, "bhavan.purchases.initiated", "Service purchases initiated", "{purchase}"); err != nil {
		return nil, err
	}
	if bm.payments, err = NewCounter(meter, "bhavan.payments", "Payment outcomes reported by the gateway", "{payment}"); err != nil {
		return nil, err
	}
	if bm.paymentAmount, err = NewHistogram(meter, "bhavan.payments.amount", "Completed payment amounts", "{currency_unit}",
		999, 1999, 2999, 4999, 7999, 9999, 19999); err != nil {
		return nil, err
	}
	if bm.leads, err = NewCounter(meter, "bhavan.leads", "Accepted form submissions", "{lead}"); err != nil {
		return nil, err
	}
	if bm.referrals, err = NewCounter(meter, "bhavan.referral_events", "Recorded referral events", "{event}"); err != nil {
		return nil, err
	}
	if bm.listings, err = NewCounter(meter, "bhavan.listings", "Broker listing submissions and reviews", "{listing}"); err != nil {
		return nil, err
	}
	return &bm, nil
}

// RecordPurchaseInitiated counts a new service request
func (bm *BusinessMetrics) RecordPurchaseInitiated(ctx context.Context, service string, affiliated bool) {
	bm.purchases.Inc(ctx, attribute.String("service", service), attribute.Bool("affiliated", affiliated))
}

// RecordPayment counts a payment outcome; completed payments also record the amount
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, outcome, currency string, amount float64) {
	bm.payments.Inc(ctx, attribute.String("outcome", outcome), attribute.String("currency", currency))
	if outcome == PaymentOutcomeCompleted {
		bm.paymentAmount.Record(ctx, amount, attribute.String("currency", currency))
	}
}

// RecordLead counts an accepted form submission
func (bm *BusinessMetrics) RecordLead(ctx context.Context, formType string, affiliated bool) {
	bm.leads.Inc(ctx, attribute.String("form_type", formType), attribute.Bool("affiliated", affiliated))
}

// RecordReferral counts a stored referral event
func (bm *BusinessMetrics) RecordReferral(ctx context.Context, kind string) {
	bm.referrals.Inc(ctx, attribute.String("kind", kind))
}

// RecordListing counts a listing submission or review outcome
func (bm *BusinessMetrics) RecordListing(ctx context.Context, status string) {
	bm.listings.Inc(ctx, attribute.String("status", status))
}
