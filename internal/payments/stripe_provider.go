package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	Intents  stripePaymentIntentAPI
}

// StripeProvider implements the Provider interface using Stripe Payment Intents.
type StripeProvider struct {
	intents stripePaymentIntentAPI
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents: intents,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateIntent opens a Stripe Payment Intent with automatic payment methods enabled.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return Intent{}, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	intent, err := p.intents.New(params)
	if err != nil {
		return Intent{}, classifyStripeError(err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
	})

	created := p.clock()
	if intent.Created != 0 {
		created = time.Unix(intent.Created, 0).UTC()
	}

	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       stripeStatus(intent),
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		CreatedAt:    created,
	}, nil
}

// VerifyIntent retrieves the authoritative Payment Intent state from Stripe.
func (p *StripeProvider) VerifyIntent(ctx context.Context, intentID string) (Verification, error) {
	if p == nil {
		return Verification{}, errors.New("stripe: provider is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Verification{}, errors.New("stripe: intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	// A plain Get returns latest_charge as an ID-only stub; the charge body
	// carries the paid/refund state this verification reads.
	params.AddExpand("latest_charge")

	intent, err := p.intents.Get(intentID, params)
	if err != nil {
		return Verification{}, classifyStripeError(err)
	}

	var paidAt *time.Time
	if charge := intent.LatestCharge; charge != nil && (charge.Paid || charge.Captured) {
		t := time.Unix(charge.Created, 0).UTC()
		paidAt = &t
	}

	currency := strings.ToUpper(string(intent.Currency))
	if currency == "" && intent.LatestCharge != nil {
		currency = strings.ToUpper(string(intent.LatestCharge.Currency))
	}

	return Verification{
		IntentID: intent.ID,
		Status:   stripeStatus(intent),
		Amount:   intent.Amount,
		Currency: currency,
		PaidAt:   paidAt,
	}, nil
}

func stripeStatus(intent *stripe.PaymentIntent) Status {
	if intent == nil {
		return StatusPending
	}

	status := StatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = StatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture:
		status = StatusPending
	}

	if charge := intent.LatestCharge; charge != nil {
		if charge.Refunded || (charge.AmountRefunded >= charge.Amount && charge.Amount > 0 && charge.AmountRefunded > 0) {
			status = StatusRefunded
		}
	}

	return status
}

func classifyStripeError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &GatewayError{Reason: ReasonTimeout, Retryable: true, Err: err}
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			switch stripe.DeclineCode(stripeErr.DeclineCode) {
			case stripe.DeclineCodeInsufficientFunds:
				return &GatewayError{Reason: ReasonInsufficientFunds, Err: err}
			case stripe.DeclineCodeExpiredCard:
				return &GatewayError{Reason: ReasonExpiredCard, Err: err}
			case stripe.DeclineCodeIncorrectCVC:
				return &GatewayError{Reason: ReasonIncorrectCVC, Err: err}
			}
			return &GatewayError{Reason: ReasonCardDeclined, Err: err}
		case stripe.ErrorCodeExpiredCard:
			return &GatewayError{Reason: ReasonExpiredCard, Err: err}
		case stripe.ErrorCodeIncorrectCVC:
			return &GatewayError{Reason: ReasonIncorrectCVC, Err: err}
		case stripe.ErrorCodeProcessingError:
			return &GatewayError{Reason: ReasonProcessingError, Retryable: true, Err: err}
		}
	}

	return &GatewayError{Reason: ReasonProcessingError, Retryable: true, Err: err}
}
