package servicerequest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayStateMatrix(t *testing.T) {
	urlStatuses := []string{"success", "failed", "refunded", ""}
	payments := []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded}
	overalls := []Status{StatusCancelled, StatusPaid}

	type expectation struct{ success, failed, refunded bool }

	expected := func(u string, p PaymentStatus, o Status) expectation {
		switch u {
		case "success":
			return expectation{success: true}
		case "failed":
			return expectation{failed: true}
		case "refunded":
			return expectation{refunded: true}
		}
		cancelled := o == StatusCancelled
		return expectation{
			success:  p == PaymentCompleted && !cancelled,
			failed:   p == PaymentFailed || (cancelled && p != PaymentRefunded),
			refunded: p == PaymentRefunded,
		}
	}

	for _, u := range urlStatuses {
		for _, p := range payments {
			for _, o := range overalls {
				name := fmt.Sprintf("url=%q/payment=%s/overall=%s", u, p, o)
				t.Run(name, func(t *testing.T) {
					want := expected(u, p, o)
					got := expectation{
						success:  IsSuccessful(u, p, o),
						failed:   IsFailed(u, p, o),
						refunded: IsRefunded(u, p, o),
					}
					assert.Equal(t, want, got)

					trueCount := 0
					for _, v := range []bool{got.success, got.failed, got.refunded} {
						if v {
							trueCount++
						}
					}
					assert.LessOrEqual(t, trueCount, 1, "predicates overlap")

					state := InferDisplayState(u, p, o)
					switch {
					case got.success:
						assert.Equal(t, DisplaySuccess, state)
					case got.failed:
						assert.Equal(t, DisplayFailed, state)
					case got.refunded:
						assert.Equal(t, DisplayRefunded, state)
					default:
						assert.Equal(t, DisplayPending, state)
					}
				})
			}
		}
	}
}

func TestDisplayStateDetails(t *testing.T) {
	t.Run("redirect status wins over the stored record", func(t *testing.T) {
		assert.Equal(t, DisplayFailed, InferDisplayState("failed", PaymentCompleted, StatusPaid))
		assert.Equal(t, DisplaySuccess, InferDisplayState("success", PaymentPending, StatusPaymentPending))
	})

	t.Run("unknown redirect status is treated as absent", func(t *testing.T) {
		assert.Equal(t, DisplaySuccess, InferDisplayState("bogus", PaymentCompleted, StatusPaid))
		assert.Equal(t, DisplaySuccess, InferDisplayState(" SUCCESS ", PaymentPending, StatusPaymentPending))
	})

	t.Run("in-flight purchase is pending and distinguishable", func(t *testing.T) {
		r := newTestRequest(t)
		state := r.DisplayState("")
		assert.Equal(t, DisplayPending, state)
		assert.False(t, state.IsTerminal())
		assert.False(t, IsSuccessful("", r.Payment.Status, r.Status))
		assert.False(t, IsFailed("", r.Payment.Status, r.Status))
		assert.False(t, IsRefunded("", r.Payment.Status, r.Status))
	})
}
