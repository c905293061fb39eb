package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
)

/*

| Endpoint               | Description                                        |
| ---------------------- | -------------------------------------------------- |
| `POST /webhook/stripe` | Checkout session events (paid, failed, expired)    |

*/

func (h *HttpServer) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading webhook request", http.StatusServiceUnavailable)
		return
	}

	update, err := h.webhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected stripe webhook", zap.Error(err))
		http.Error(w, "Invalid Stripe webhook payload", http.StatusBadRequest)
		return
	}
	if update == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	status, err := h.checkout.RecordProviderStatus(ctx, update.PaymentRef, update.Status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.Info("webhook for unknown payment", zap.String("payment_ref", update.PaymentRef))
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("failed to record webhook status",
			zap.String("event_id", update.EventID), zap.String("payment_ref", update.PaymentRef), zap.Error(err))
		// Stripe redelivers on non-2xx.
		http.Error(w, "Failed to record payment status", http.StatusInternalServerError)
		return
	}

	if status == domain.PaymentStatusCompleted {
		if _, err := h.checkout.Submit(ctx, update.PaymentRef); err != nil {
			h.logger.Error("idea submission after webhook failed",
				zap.String("payment_ref", update.PaymentRef), zap.Error(err))
			// The status is stored; redelivery only retries the submission.
			http.Error(w, "Failed to submit idea", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
