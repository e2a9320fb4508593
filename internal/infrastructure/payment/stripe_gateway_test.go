package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	gw, err := NewStripeGateway(config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Currency:      "inr",
	}, zap.NewNop(), WithBackends(&stripe.Backends{API: backend, Connect: backend, Uploads: backend}))
	require.NoError(t, err)
	return gw
}

func TestNewStripeGateway_RequiresSecretKey(t *testing.T) {
	_, err := NewStripeGateway(config.StripeConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, servicerequest.ErrGatewayNotConfigured)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(499900), ToMinorUnits(decimal.RequireFromString("4999")))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.True(t, decimal.RequireFromString("4999").Equal(FromMinorUnits(499900)))
}

func TestCreatePaymentIntent(t *testing.T) {
	var form map[string]string
	var idemKey string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"amount":   r.PostForm.Get("amount"),
			"currency": r.PostForm.Get("currency"),
			"ref":      r.PostForm.Get("metadata[reference_number]"),
			"aff":      r.PostForm.Get("metadata[affiliate_id]"),
		}
		idemKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","amount":499900,"currency":"inr"}`))
	})

	pi, err := gw.CreatePaymentIntent(context.Background(), servicerequest.PaymentIntentRequest{
		ReferenceNumber: "BHV-1001",
		Amount:          decimal.RequireFromString("4999"),
		Currency:        "INR",
		Metadata:        map[string]string{servicerequest.MetadataAffiliateID: "partner123"},
		IdempotencyKey:  "purchase-BHV-1001-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "499900", form["amount"])
	assert.Equal(t, "inr", form["currency"])
	assert.Equal(t, "BHV-1001", form["ref"])
	assert.Equal(t, "partner123", form["aff"])
	assert.Equal(t, "purchase-BHV-1001-1", idemKey)

	assert.Equal(t, "pi_123", pi.ID)
	assert.Equal(t, "pi_123_secret_abc", pi.ClientSecret)
	assert.Equal(t, "INR", pi.Currency)
	assert.Equal(t, "stripe", pi.Gateway)
	assert.True(t, decimal.RequireFromString("4999").Equal(pi.Amount))
}

func TestCreatePaymentIntent_SurfacesGatewayMessage(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := gw.CreatePaymentIntent(context.Background(), servicerequest.PaymentIntentRequest{
		ReferenceNumber: "BHV-1001",
		Amount:          decimal.RequireFromString("4999"),
	})
	require.Error(t, err)

	var gwErr *servicerequest.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "Your card was declined.", gwErr.Message)
}

func TestCreateCheckoutSession(t *testing.T) {
	var successURL, ref string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		successURL = r.PostForm.Get("success_url")
		ref = r.PostForm.Get("payment_intent_data[metadata][reference_number]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	sess, err := gw.CreateCheckoutSession(context.Background(), servicerequest.CheckoutRequest{
		ReferenceNumber: "BHV-1001",
		ServiceName:     "Title Verification",
		Amount:          decimal.RequireFromString("4999"),
		Currency:        "INR",
		SuccessURL:      "https://bhavan.example/services/confirmation?ref=BHV-1001&status=success",
		CancelURL:       "https://bhavan.example/services/confirmation?ref=BHV-1001&status=failed",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)
	assert.Equal(t, "https://bhavan.example/services/confirmation?ref=BHV-1001&status=success", successURL)
	assert.Equal(t, "BHV-1001", ref)
}

func TestRefund(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","status":"succeeded"}`))
	})

	res, err := gw.Refund(context.Background(), "pi_123", "refund-BHV-1001")
	require.NoError(t, err)
	assert.Equal(t, "re_1", res.ID)
	assert.Equal(t, "succeeded", res.Status)

	_, err = gw.Refund(context.Background(), "", "")
	assert.Error(t, err)
}

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestParseEvent(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	t.Run("payment succeeded", func(t *testing.T) {
		header, body := signed(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","created":1709287200,
			"data":{"object":{"id":"pi_123","object":"payment_intent","metadata":{"reference_number":"BHV-1001"}}}}`)

		ev, err := gw.ParseEvent(body, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, servicerequest.GatewayEventPaymentSucceeded, ev.Type)
		assert.Equal(t, "BHV-1001", ev.ReferenceNumber)
		assert.Equal(t, "pi_123", ev.TransactionID)
		assert.Equal(t, time.Unix(1709287200, 0).UTC(), ev.OccurredAt)
	})

	t.Run("attempt number is read from metadata", func(t *testing.T) {
		header, body := signed(t, `{"id":"evt_6","object":"event","type":"payment_intent.payment_failed","created":1709287200,
			"data":{"object":{"id":"pi_old","object":"payment_intent","metadata":{"reference_number":"BHV-1001","attempt":"1"}}}}`)

		ev, err := gw.ParseEvent(body, header)
		require.NoError(t, err)
		assert.Equal(t, 1, ev.Attempt)
		assert.Equal(t, "pi_old", ev.TransactionID)
	})

	t.Run("payment failed carries the decline message", func(t *testing.T) {
		header, body := signed(t, `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","created":1709287200,
			"data":{"object":{"id":"pi_123","object":"payment_intent","metadata":{"reference_number":"BHV-1001"},
			"last_payment_error":{"message":"Insufficient funds"}}}}`)

		ev, err := gw.ParseEvent(body, header)
		require.NoError(t, err)
		assert.Equal(t, servicerequest.GatewayEventPaymentFailed, ev.Type)
		assert.Equal(t, "Insufficient funds", ev.FailureMessage)
	})

	t.Run("charge refunded resolves the payment intent", func(t *testing.T) {
		header, body := signed(t, `{"id":"evt_3","object":"event","type":"charge.refunded","created":1709287200,
			"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_123","metadata":{}}}}`)

		ev, err := gw.ParseEvent(body, header)
		require.NoError(t, err)
		assert.Equal(t, servicerequest.GatewayEventRefunded, ev.Type)
		assert.Equal(t, "pi_123", ev.TransactionID)
		assert.Empty(t, ev.ReferenceNumber)
	})

	t.Run("unrelated events are ignored", func(t *testing.T) {
		header, body := signed(t, `{"id":"evt_4","object":"event","type":"customer.created","created":1709287200,
			"data":{"object":{"id":"cus_1","object":"customer"}}}`)

		ev, err := gw.ParseEvent(body, header)
		require.NoError(t, err)
		assert.Equal(t, servicerequest.GatewayEventIgnored, ev.Type)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		_, body := signed(t, `{"id":"evt_5","object":"event","type":"payment_intent.succeeded"}`)

		_, err := gw.ParseEvent(body, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, servicerequest.ErrGatewayInvalidCallback)
	})
}

func TestLookupPayment(t *testing.T) {
	responses := map[string]string{
		"/v1/payment_intents/pi_paid":      `{"id":"pi_paid","object":"payment_intent","status":"succeeded","metadata":{"reference_number":"BHV-1001"}}`,
		"/v1/payment_intents/pi_open":      `{"id":"pi_open","object":"payment_intent","status":"requires_payment_method"}`,
		"/v1/payment_intents/pi_declined":  `{"id":"pi_declined","object":"payment_intent","status":"requires_payment_method","last_payment_error":{"message":"Your card was declined."}}`,
		"/v1/checkout/sessions/cs_paid":    `{"id":"cs_paid","object":"checkout.session","status":"complete","payment_status":"paid","client_reference_id":"BHV-1002","payment_intent":{"id":"pi_from_cs","object":"payment_intent","status":"succeeded"}}`,
		"/v1/checkout/sessions/cs_expired": `{"id":"cs_expired","object":"checkout.session","status":"expired","client_reference_id":"BHV-1003","metadata":{"attempt":"2"}}`,
		"/v1/checkout/sessions/cs_open":    `{"id":"cs_open","object":"checkout.session","status":"open","client_reference_id":"BHV-1004"}`,
	}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such object"}}`))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/v1/checkout/") {
			assert.Contains(t, r.URL.RawQuery, "payment_intent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		want    *servicerequest.GatewayEvent
		wantErr bool
	}{
		{
			name: "succeeded intent",
			id:   "pi_paid",
			want: &servicerequest.GatewayEvent{
				ID: "lookup:pi_paid:succeeded", Type: servicerequest.GatewayEventPaymentSucceeded,
				RawType: "payment_intent.succeeded", ReferenceNumber: "BHV-1001", TransactionID: "pi_paid",
			},
		},
		{name: "open intent", id: "pi_open"},
		{
			name: "declined intent",
			id:   "pi_declined",
			want: &servicerequest.GatewayEvent{
				ID: "lookup:pi_declined:requires_payment_method", Type: servicerequest.GatewayEventPaymentFailed,
				RawType: "payment_intent.payment_failed", TransactionID: "pi_declined", FailureMessage: "Your card was declined.",
			},
		},
		{
			name: "paid checkout session settles with the intent id",
			id:   "cs_paid",
			want: &servicerequest.GatewayEvent{
				ID: "lookup:pi_from_cs:succeeded", Type: servicerequest.GatewayEventPaymentSucceeded,
				RawType: "payment_intent.succeeded", ReferenceNumber: "BHV-1002", TransactionID: "pi_from_cs",
			},
		},
		{
			name: "expired checkout session",
			id:   "cs_expired",
			want: &servicerequest.GatewayEvent{
				ID: "lookup:cs_expired:expired", Type: servicerequest.GatewayEventPaymentFailed,
				RawType: "checkout.session.expired", ReferenceNumber: "BHV-1003", TransactionID: "cs_expired",
				Attempt: 2, FailureMessage: "Payment session expired",
			},
		},
		{name: "open checkout session", id: "cs_open"},
		{name: "unknown object", id: "pi_missing", wantErr: true},
		{name: "unsupported id", id: "ch_123", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gw.LookupPayment(ctx, tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCancelPayment(t *testing.T) {
	var paths []string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payment_intents/pi_open/cancel":
			_, _ = w.Write([]byte(`{"id":"pi_open","object":"payment_intent","status":"canceled"}`))
		case "/v1/checkout/sessions/cs_open/expire":
			_, _ = w.Write([]byte(`{"id":"cs_open","object":"checkout.session","status":"expired"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"This PaymentIntent has already succeeded."}}`))
		}
	})
	ctx := context.Background()

	require.NoError(t, gw.CancelPayment(ctx, "pi_open"))
	require.NoError(t, gw.CancelPayment(ctx, "cs_open"))
	assert.Equal(t, []string{
		"POST /v1/payment_intents/pi_open/cancel",
		"POST /v1/checkout/sessions/cs_open/expire",
	}, paths)

	err := gw.CancelPayment(ctx, "pi_paid")
	var gwErr *servicerequest.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "This PaymentIntent has already succeeded.", gwErr.Message)

	assert.Error(t, gw.CancelPayment(ctx, "ch_123"))
}
