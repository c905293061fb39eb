package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GalaDe/ideas-service/internal/domain"
)

const (
	_defaultRateLimit   = 20
	_defaultNetRetries  = 2
	checkoutProductName = "Idea submission fee"
)

type stripeImpl struct {
	Config  *StripeConfig
	api     *client.API
	limiter *rate.Limiter
	logger  *zap.Logger
}

type StripeConfig struct {
	AppKey        string `json:"AppKey"`
	WebhookKey    string `json:"WebhookKey"`
	BackendURL    string `json:"BackendURL"` // Overrides the API endpoint, empty for api.stripe.com
	PublicBaseURL string `json:"PublicBaseURL"`
	RateLimit     int    `json:"RateLimit"` // Requests per second
	MaxRetries    int64  `json:"MaxRetries"`
}

type StripeService interface {
	domain.PaymentProvider
	ParseWebhook(payload []byte, signature string) (*WebhookUpdate, error)
}

func NewStripe(config *StripeConfig, logger *zap.Logger) StripeService {
	limit := config.RateLimit
	if limit <= 0 {
		limit = _defaultRateLimit
	}
	retries := config.MaxRetries
	if retries <= 0 {
		retries = _defaultNetRetries
	}

	backendConfig := &stripe.BackendConfig{
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: stripe.Int64(retries),
	}
	if config.BackendURL != "" {
		backendConfig.URL = stripe.String(config.BackendURL)
	}

	api := &client.API{}
	api.Init(config.AppKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
	})

	return &stripeImpl{
		Config:  config,
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(limit), limit),
		logger:  logger,
	}
}

func (s *stripeImpl) callbackURL(result string) string {
	return fmt.Sprintf("%s/payment/callback?ref={CHECKOUT_SESSION_ID}&result=%s", s.Config.PublicBaseURL, result)
}

// Initiate creates a hosted Checkout Session for the submission fee.
// The session ID doubles as the payment reference.
func (s *stripeImpl) Initiate(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.callbackURL("success")),
		CancelURL:         stripe.String(s.callbackURL("cancel")),
		ClientReferenceID: stripe.String(req.DraftID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(checkoutProductName),
						Description: stripe.String(req.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Params: stripe.Params{
			IdempotencyKey: stripe.String(req.IdempotencyKey),
			Context:        ctx,
		},
	}
	params.AddMetadata("draft_id", req.DraftID)
	params.AddMetadata("user_id", req.UserID)

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	return &domain.CheckoutSession{
		PaymentRef: cs.ID,
		PayURL:     cs.URL,
		Status:     MapSessionStatus(cs),
	}, nil
}

func (s *stripeImpl) Status(ctx context.Context, paymentRef string) (domain.PaymentStatus, error) {
	cs, err := s.getSession(ctx, paymentRef)
	if err != nil {
		return "", err
	}
	return MapSessionStatus(cs), nil
}

func (s *stripeImpl) getSession(ctx context.Context, paymentRef string) (*stripe.CheckoutSession, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.api.CheckoutSessions.Get(paymentRef, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("stripe: checkout session %s: %w", paymentRef, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("stripe: failed to retrieve checkout session %s: %w", paymentRef, err)
	}
	return cs, nil
}

// Cancel expires an open session. Stripe rejects expiring a session that is
// no longer open, which is treated as success.
func (s *stripeImpl) Cancel(ctx context.Context, paymentRef string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	_, err := s.api.CheckoutSessions.Expire(paymentRef, params)
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusBadRequest {
		cs, getErr := s.getSession(ctx, paymentRef)
		if getErr == nil && cs.Status != stripe.CheckoutSessionStatusOpen {
			s.logger.Debug("checkout session already closed",
				zap.String("payment_ref", paymentRef), zap.String("status", string(cs.Status)))
			return nil
		}
	}
	return fmt.Errorf("stripe: failed to expire checkout session %s: %w", paymentRef, err)
}

// MapSessionStatus translates a Checkout Session into a payment status.
// A completed session whose payment has not cleared yet (delayed methods)
// stays pending until the async payment webhook arrives.
func MapSessionStatus(cs *stripe.CheckoutSession) domain.PaymentStatus {
	switch cs.Status {
	case stripe.CheckoutSessionStatusComplete:
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
			return domain.PaymentStatusCompleted
		}
		return domain.PaymentStatusPending
	case stripe.CheckoutSessionStatusExpired:
		return domain.PaymentStatusCancelled
	default:
		return domain.PaymentStatusPending
	}
}
