package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

/*

| Endpoint                                     | Description                         |
| -------------------------------------------- | ----------------------------------- |
| `POST   /drafts`                             | Start a new wizard                  |
| `GET    /drafts/{id}`                        | Current wizard state                |
| `DELETE /drafts/{id}`                        | Discard the wizard                  |
| `PATCH  /drafts/{id}/fields`                 | Set one form field                  |
| `POST   /drafts/{id}/next`, `/prev`          | Move between steps                  |
| `POST   /drafts/{id}/markets/{kind}`         | Add a current or future market      |
| `PUT    /drafts/{id}/markets/{kind}/{index}` | Replace a market entry              |
| `DELETE /drafts/{id}/markets/{kind}/{index}` | Remove a market entry               |
| `POST   /drafts/{id}/documents`              | Attach document metadata            |
| `DELETE /drafts/{id}/documents/{index}`      | Remove a document                   |
| `POST   /drafts/{id}/payment`                | Pay the submission fee              |

*/

type SetFieldRequest struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

type InitiatePaymentResponse struct {
	PaymentRef string               `json:"paymentRef"`
	PayURL     string               `json:"payUrl"`
	Status     domain.PaymentStatus `json:"status"`
}

func (h *HttpServer) writeDraft(w http.ResponseWriter, r *http.Request, d *wizard.Draft, err error) {
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, d)
}

func (h *HttpServer) indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid index")
		return 0, false
	}
	return index, true
}

/*
POST /drafts
*/
func (h *HttpServer) CreateDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Create(r.Context(), userID(r))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, d)
}

func (h *HttpServer) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Discard(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HttpServer) SetDraftField(w http.ResponseWriter, r *http.Request) {
	var req SetFieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Field == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing field name")
		return
	}

	d, err := h.drafts.SetField(r.Context(), userID(r), chi.URLParam(r, "id"), req.Field, req.Value)
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) NextStep(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Next(r.Context(), userID(r), chi.URLParam(r, "id"))
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) PrevStep(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Prev(r.Context(), userID(r), chi.URLParam(r, "id"))
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) AddMarket(w http.ResponseWriter, r *http.Request) {
	kind := wizard.MarketKind(chi.URLParam(r, "kind"))
	d, err := h.drafts.AddMarket(r.Context(), userID(r), chi.URLParam(r, "id"), kind)
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) UpdateMarket(w http.ResponseWriter, r *http.Request) {
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}
	var m domain.Market
	if !h.decode(w, r, &m) {
		return
	}

	kind := wizard.MarketKind(chi.URLParam(r, "kind"))
	d, err := h.drafts.UpdateMarket(r.Context(), userID(r), chi.URLParam(r, "id"), kind, index, m)
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) RemoveMarket(w http.ResponseWriter, r *http.Request) {
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}

	kind := wizard.MarketKind(chi.URLParam(r, "kind"))
	d, err := h.drafts.RemoveMarket(r.Context(), userID(r), chi.URLParam(r, "id"), kind, index)
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) AddDocument(w http.ResponseWriter, r *http.Request) {
	var doc wizard.Document
	if !h.decode(w, r, &doc) {
		return
	}
	d, err := h.drafts.AddDocument(r.Context(), userID(r), chi.URLParam(r, "id"), doc)
	h.writeDraft(w, r, d, err)
}

func (h *HttpServer) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}
	d, err := h.drafts.RemoveDocument(r.Context(), userID(r), chi.URLParam(r, "id"), index)
	h.writeDraft(w, r, d, err)
}

/*
POST /drafts/{id}/payment
*/
func (h *HttpServer) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	session, err := h.checkout.Initiate(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, InitiatePaymentResponse{
		PaymentRef: session.PaymentRef,
		PayURL:     session.PayURL,
		Status:     session.Status,
	})
}
