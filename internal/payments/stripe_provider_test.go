package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentsAPI struct {
	newFn func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFn func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentsAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.newFn(params)
}

func (s *stubIntentsAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.getFn(id, params)
}

func newStubProvider(t *testing.T, api stripePaymentIntentAPI) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		Intents: api,
		Clock:   func() time.Time { return time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewStripeProvider returned error: %v", err)
	}
	return provider
}

func TestCreateIntentBuildsParams(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	provider := newStubProvider(t, &stubIntentsAPI{
		newFn: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			captured = params
			return &stripe.PaymentIntent{
				ID:           "pi_1",
				ClientSecret: "pi_1_secret",
				Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
				Amount:       2000,
				Currency:     stripe.CurrencyTRY,
			}, nil
		},
	})

	intent, err := provider.CreateIntent(context.Background(), IntentRequest{
		Amount:         2000,
		Currency:       "TRY",
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}
	if intent.ID != "pi_1" || intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if intent.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", intent.Status)
	}
	if intent.Currency != "TRY" {
		t.Fatalf("expected TRY, got %q", intent.Currency)
	}
	if captured == nil || captured.Amount == nil || *captured.Amount != 2000 {
		t.Fatalf("amount not forwarded: %+v", captured)
	}
	if captured.Currency == nil || *captured.Currency != "try" {
		t.Fatalf("currency must be lowercased for the PSP: %+v", captured.Currency)
	}
	if captured.AutomaticPaymentMethods == nil || captured.AutomaticPaymentMethods.Enabled == nil || !*captured.AutomaticPaymentMethods.Enabled {
		t.Fatalf("automatic payment methods must be enabled")
	}
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	provider := newStubProvider(t, &stubIntentsAPI{
		newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			t.Fatalf("PSP must not be called for invalid amounts")
			return nil, nil
		},
	})

	if _, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 0, Currency: "TRY"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreateIntentClassifiesDeclines(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{
			"generic decline",
			&stripe.Error{Code: stripe.ErrorCodeCardDeclined},
			ReasonCardDeclined,
		},
		{
			"insufficient funds",
			&stripe.Error{Code: stripe.ErrorCodeCardDeclined, DeclineCode: stripe.DeclineCodeInsufficientFunds},
			ReasonInsufficientFunds,
		},
		{
			"expired card",
			&stripe.Error{Code: stripe.ErrorCodeExpiredCard},
			ReasonExpiredCard,
		},
		{
			"incorrect cvc",
			&stripe.Error{Code: stripe.ErrorCodeIncorrectCVC},
			ReasonIncorrectCVC,
		},
	}

	for _, tc := range cases {
		provider := newStubProvider(t, &stubIntentsAPI{
			newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
				return nil, tc.err
			},
		})

		_, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 1000, Currency: "TRY"})
		var gwErr *GatewayError
		if !errors.As(err, &gwErr) {
			t.Fatalf("%s: expected GatewayError, got %v", tc.name, err)
		}
		if gwErr.Reason != tc.reason {
			t.Fatalf("%s: expected reason %q, got %q", tc.name, tc.reason, gwErr.Reason)
		}
	}
}

func TestCreateIntentTimeoutIsUnknownOutcome(t *testing.T) {
	provider := newStubProvider(t, &stubIntentsAPI{
		newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, context.DeadlineExceeded
		},
	})

	_, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 1000, Currency: "TRY"})
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Reason != ReasonTimeout || !gwErr.Retryable {
		t.Fatalf("timeout must map to retryable unknown outcome, got %+v", gwErr)
	}
}

func TestVerifyIntentReportsPaidCharge(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	provider := newStubProvider(t, &stubIntentsAPI{
		getFn: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if id != "pi_1" {
				t.Fatalf("unexpected intent id %q", id)
			}
			captured = params
			return &stripe.PaymentIntent{
				ID:       "pi_1",
				Status:   stripe.PaymentIntentStatusSucceeded,
				Amount:   15000,
				Currency: stripe.CurrencyTRY,
				LatestCharge: &stripe.Charge{
					Paid:    true,
					Amount:  15000,
					Created: time.Date(2026, 7, 1, 9, 59, 0, 0, time.UTC).Unix(),
				},
			}, nil
		},
	})

	verification, err := provider.VerifyIntent(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("VerifyIntent returned error: %v", err)
	}
	if verification.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %q", verification.Status)
	}
	if verification.Amount != 15000 {
		t.Fatalf("expected amount 15000, got %d", verification.Amount)
	}
	if verification.PaidAt == nil {
		t.Fatalf("expected paid timestamp")
	}

	// Without expanding latest_charge Stripe returns an ID-only stub, so the
	// charge's paid and refund flags would never be visible.
	expanded := false
	if captured != nil {
		for _, field := range captured.Expand {
			if field != nil && *field == "latest_charge" {
				expanded = true
			}
		}
	}
	if !expanded {
		t.Fatalf("expected latest_charge to be expanded, got %+v", captured)
	}
}
