package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/auth"
	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/services/checkout"
	"github.com/GalaDe/ideas-service/internal/services/stripe"
	"github.com/GalaDe/ideas-service/internal/storage/redis"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

type DraftService interface {
	Create(ctx context.Context, userID string) (*wizard.Draft, error)
	Get(ctx context.Context, userID, id string) (*wizard.Draft, error)
	Discard(ctx context.Context, userID, id string) error
	SetField(ctx context.Context, userID, id, field string, value interface{}) (*wizard.Draft, error)
	Next(ctx context.Context, userID, id string) (*wizard.Draft, error)
	Prev(ctx context.Context, userID, id string) (*wizard.Draft, error)
	AddMarket(ctx context.Context, userID, id string, kind wizard.MarketKind) (*wizard.Draft, error)
	UpdateMarket(ctx context.Context, userID, id string, kind wizard.MarketKind, index int, m domain.Market) (*wizard.Draft, error)
	RemoveMarket(ctx context.Context, userID, id string, kind wizard.MarketKind, index int) (*wizard.Draft, error)
	AddDocument(ctx context.Context, userID, id string, doc wizard.Document) (*wizard.Draft, error)
	RemoveDocument(ctx context.Context, userID, id string, index int) (*wizard.Draft, error)
}

type CheckoutService interface {
	Initiate(ctx context.Context, userID, draftID string) (*domain.PaymentSession, error)
	Payment(ctx context.Context, userID, paymentRef string) (*domain.PaymentSession, error)
	Payments(ctx context.Context, userID string) ([]*domain.PaymentSession, error)
	Complete(ctx context.Context, paymentRef string) (*checkout.Outcome, error)
	Submit(ctx context.Context, paymentRef string) (*domain.Idea, error)
	ResolveCallback(ctx context.Context, paymentRef, result string) (*checkout.CallbackView, error)
	RecordProviderStatus(ctx context.Context, paymentRef string, status domain.PaymentStatus) (domain.PaymentStatus, error)
	Idea(ctx context.Context, userID, ideaID string) (*domain.Idea, error)
	Ideas(ctx context.Context, userID string) ([]*domain.Idea, error)
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*stripe.WebhookUpdate, error)
}

type HttpServer struct {
	logger   *zap.Logger
	verifier *auth.Verifier
	drafts   DraftService
	checkout CheckoutService
	webhooks WebhookParser
}

func NewHttpServer(logger *zap.Logger, verifier *auth.Verifier, drafts DraftService,
	checkout CheckoutService, webhooks WebhookParser) *HttpServer {
	return &HttpServer{
		logger:   logger,
		verifier: verifier,
		drafts:   drafts,
		checkout: checkout,
		webhooks: webhooks,
	}
}

func (h *HttpServer) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *HttpServer) respondWithError(w http.ResponseWriter, status int, message string) {
	h.respondWithJSON(w, status, map[string]string{"error": message})
}

// statusClientClosedRequest is written when the caller went away before the
// answer was ready, so request logs do not show a 200.
const statusClientClosedRequest = 499

type validationResponse struct {
	Error  string      `json:"error"`
	Step   wizard.Step `json:"step"`
	Fields []string    `json:"fields"`
}

// respondWithDomainError maps service errors onto HTTP statuses.
func (h *HttpServer) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondWithJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:  verr.Message,
			Step:   verr.Step,
			Fields: verr.Fields,
		})
	case errors.Is(err, domain.ErrNotReadyForPayment):
		h.respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrPaymentPending),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrPaymentNotConfirmed),
		errors.Is(err, redis.ErrConflict):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInitiationFailed):
		h.respondWithError(w, http.StatusBadGateway, domain.ErrInitiationFailed.Error())
	case errors.Is(err, domain.ErrPaymentUnsettled):
		h.respondWithError(w, http.StatusServiceUnavailable, domain.ErrPaymentUnsettled.Error())
	case errors.Is(err, context.Canceled):
		h.logger.Debug("client closed request", zap.String("path", r.URL.Path))
		w.WriteHeader(statusClientClosedRequest)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *HttpServer) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
