package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/services/checkout"
)

/*

| Endpoint                          | Description                                        |
| --------------------------------- | -------------------------------------------------- |
| `GET  /payments`                  | List the user's payment sessions                   |
| `GET  /payments/{ref}`            | Payment session status                             |
| `GET  /payments/{ref}/await`      | Wait until the payment settles, then submit        |
| `POST /payments/{ref}/submit`     | Create (or return) the idea paid for by {ref}      |
| `GET  /payment/callback`          | Landing page after the hosted payment page         |
| `GET  /ideas`, `GET /ideas/{id}`  | Submitted ideas                                    |

*/

/*
GET /payments
*/
func (h *HttpServer) GetPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.checkout.Payments(r.Context(), userID(r))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, payments)
}

/*
GET /payments/{ref}
*/
func (h *HttpServer) GetPaymentByRef(w http.ResponseWriter, r *http.Request) {
	payment, err := h.checkout.Payment(r.Context(), userID(r), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, payment)
}

/*
GET /payments/{ref}/await

Long-polls the payment on behalf of the wizard. Closing the request stops
waiting; the submission workflow keeps watching the payment.
*/
func (h *HttpServer) AwaitPayment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if _, err := h.checkout.Payment(r.Context(), userID(r), ref); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}

	out, err := h.checkout.Complete(r.Context(), ref)
	if err != nil && out == nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	if err != nil {
		// Paid but the idea could not be created yet; it is retried in the background.
		h.logger.Warn("idea submission pending after payment", zap.String("payment_ref", ref), zap.Error(err))
		h.respondWithJSON(w, http.StatusAccepted, out)
		return
	}
	h.respondWithJSON(w, http.StatusOK, out)
}

/*
POST /payments/{ref}/submit
*/
func (h *HttpServer) SubmitIdea(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if _, err := h.checkout.Payment(r.Context(), userID(r), ref); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}

	idea, err := h.checkout.Submit(r.Context(), ref)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, checkout.Outcome{
		PaymentRef: ref,
		Status:     domain.PaymentStatusCompleted,
		Idea:       idea,
		Redirect:   domain.DashboardPath,
	})
}

/*
GET /payment/callback?ref=&result=
*/
func (h *HttpServer) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	view, err := h.checkout.ResolveCallback(r.Context(), ref, r.URL.Query().Get("result"))
	switch {
	case errors.Is(err, domain.ErrMissingPaymentRef):
		h.respondWithJSON(w, http.StatusBadRequest, view)
	case errors.Is(err, domain.ErrNotFound):
		h.respondWithJSON(w, http.StatusNotFound, checkout.CallbackView{
			State:      checkout.CallbackError,
			PaymentRef: ref,
			Message:    "unknown payment reference",
			Actions:    []string{checkout.ActionDashboard},
		})
	case err != nil:
		h.respondWithDomainError(w, r, err)
	case view.State == checkout.CallbackTimeout:
		h.respondWithJSON(w, http.StatusGatewayTimeout, view)
	default:
		h.respondWithJSON(w, http.StatusOK, view)
	}
}

/*
GET /ideas
*/
func (h *HttpServer) GetIdeas(w http.ResponseWriter, r *http.Request) {
	ideas, err := h.checkout.Ideas(r.Context(), userID(r))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, ideas)
}

/*
GET /ideas/{id}
*/
func (h *HttpServer) GetIdeaByID(w http.ResponseWriter, r *http.Request) {
	idea, err := h.checkout.Idea(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, idea)
}
