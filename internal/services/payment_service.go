package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/carsi-commerce/api/internal/payments"
)

const defaultGatewayTimeout = 10 * time.Second

var errPaymentProviderRequired = errors.New("payment service: provider is required")

// ErrPaymentInvalidAmount indicates the checkout amount is not positive.
var ErrPaymentInvalidAmount = errors.New("payment service: amount must be positive")

// ErrPaymentInvalidIntent indicates the intent reference is missing or malformed.
var ErrPaymentInvalidIntent = errors.New("payment service: invalid payment intent")

// ErrPaymentUnavailable indicates the gateway could not be reached.
var ErrPaymentUnavailable = errors.New("payment service: unavailable")

// PaymentServiceDeps wires the gateway provider for payment operations.
type PaymentServiceDeps struct {
	Provider       payments.Provider
	Currency       string
	GatewayTimeout time.Duration
	Logger         func(context.Context, string, map[string]any)
}

type paymentService struct {
	provider payments.Provider
	currency string
	timeout  time.Duration
	logger   func(context.Context, string, map[string]any)
}

// NewPaymentService constructs a PaymentService enforcing dependency validation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Provider == nil {
		return nil, errPaymentProviderRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "TRY"
	}
	timeout := deps.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		provider: deps.Provider,
		currency: currency,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// CreatePaymentIntent opens a gateway intent for the major-unit amount.
// 19.99 lira becomes 1999 kuruş by rounding to nearest, never truncation.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error) {
	if s == nil || s.provider == nil {
		return PaymentIntentResult{}, ErrPaymentUnavailable
	}
	if cmd.Amount <= 0 || math.IsNaN(cmd.Amount) || math.IsInf(cmd.Amount, 0) {
		return PaymentIntentResult{}, ErrPaymentInvalidAmount
	}

	minor := int64(math.Round(cmd.Amount * 100))
	if minor <= 0 {
		return PaymentIntentResult{}, ErrPaymentInvalidAmount
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intent, err := s.provider.CreateIntent(gatewayCtx, payments.IntentRequest{
		Amount:         minor,
		Currency:       s.currency,
		CustomerID:     strings.TrimSpace(cmd.CustomerID),
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidAmount) {
			return PaymentIntentResult{}, ErrPaymentInvalidAmount
		}
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) {
			s.logger(ctx, "payments.intent.failed", map[string]any{
				"reason":    gwErr.Reason,
				"retryable": gwErr.Retryable,
			})
			return PaymentIntentResult{}, gwErr
		}
		return PaymentIntentResult{}, ErrPaymentUnavailable
	}

	s.logger(ctx, "payments.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
	})

	return PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	}, nil
}

// VerifyPaymentIntent fetches the authoritative intent state used to gate checkout.
func (s *paymentService) VerifyPaymentIntent(ctx context.Context, intentID string) (PaymentVerification, error) {
	if s == nil || s.provider == nil {
		return PaymentVerification{}, ErrPaymentUnavailable
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return PaymentVerification{}, ErrPaymentInvalidIntent
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verification, err := s.provider.VerifyIntent(gatewayCtx, intentID)
	if err != nil {
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) {
			return PaymentVerification{}, gwErr
		}
		return PaymentVerification{}, ErrPaymentUnavailable
	}

	return PaymentVerification{
		IntentID:  verification.IntentID,
		Succeeded: verification.Status == payments.StatusSucceeded,
		Amount:    verification.Amount,
		Currency:  verification.Currency,
		PaidAt:    verification.PaidAt,
	}, nil
}
