package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotAuthenticated   = errors.New("login required to place an order")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrUnsupportedPayment = errors.New("unsupported payment method")
	ErrSubmitInProgress   = errors.New("an order submission is already in progress")
)

// AddressError lists the required address fields left blank.
type AddressError struct {
	Fields []string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("missing required address fields: %s", strings.Join(e.Fields, ", "))
}

// OrderError is a rejected or failed order placement. Message is what the
// user sees.
type OrderError struct {
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("place order: %s", e.Message)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}
