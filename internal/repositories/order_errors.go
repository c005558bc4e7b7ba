package repositories

import "fmt"

// OrderErrorCode classifies order persistence failures for the service layer.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order document is missing.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorInsufficientStock indicates a line requested more units than remain.
	OrderErrorInsufficientStock OrderErrorCode = "order_insufficient_stock"
	// OrderErrorProductNotFound indicates a line references a missing product.
	OrderErrorProductNotFound OrderErrorCode = "order_product_not_found"
	// OrderErrorInvalidTransition indicates the lifecycle forbids the requested status.
	OrderErrorInvalidTransition OrderErrorCode = "order_invalid_transition"
)

// OrderError wraps order-specific failures with machine readable codes.
// ProductID is set for stock and product lookup failures.
type OrderError struct {
	Op        string
	Code      OrderErrorCode
	ProductID string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
