package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded (partially or fully).
	StatusRefunded Status = "refunded"
)

// Decline reasons reported back to clients when the PSP rejects a payment.
const (
	ReasonCardDeclined      = "card_declined"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonExpiredCard       = "expired_card"
	ReasonIncorrectCVC      = "incorrect_cvc"
	ReasonProcessingError   = "processing_error"
	ReasonTimeout           = "timeout"
)

// ErrInvalidAmount is returned when an intent is requested for a non-positive amount.
var ErrInvalidAmount = errors.New("payments: amount must be positive")

// GatewayError carries the normalised PSP failure classification. A timeout is
// an unknown outcome; callers must never treat it as success.
type GatewayError struct {
	Reason    string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payments: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("payments: %s", e.Reason)
}

// Unwrap exposes the underlying PSP error.
func (e *GatewayError) Unwrap() error { return e.Err }

// IntentRequest captures the payload required to open a payment intent.
// Amount is in minor units (kuruş).
type IntentRequest struct {
	Amount         int64
	Currency       string
	CustomerID     string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent represents the PSP payment intent returned to the client.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
	CreatedAt    time.Time
}

// Verification is the server-side view of an intent used to gate checkout.
type Verification struct {
	IntentID string
	Status   Status
	Amount   int64
	Currency string
	PaidAt   *time.Time
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	// CreateIntent opens a payment intent for the given amount.
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	// VerifyIntent fetches the authoritative intent state from the PSP.
	VerifyIntent(ctx context.Context, intentID string) (Verification, error)
}
