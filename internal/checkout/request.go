package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PaymentMethod selects which variant of PaymentDetails is populated.
type PaymentMethod string

const (
	PaymentPayPal PaymentMethod = "paypal"
	PaymentCard   PaymentMethod = "card"
)

// Credentials for the storefront account. Never logged, never persisted.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// ProductSelection identifies a single product variant to add to the bag.
type ProductSelection struct {
	ID    string `validate:"required"`
	Color string `validate:"required"`
	Size  string `validate:"required"`
}

func (p ProductSelection) String() string {
	return fmt.Sprintf("%s (color %s, size %s)", p.ID, p.Color, p.Size)
}

// CardDetails holds the credit-card variant's fields, including the billing
// information PayPal's guest-checkout form asks for.
type CardDetails struct {
	Number    string `validate:"required"`
	Expiry    string `validate:"required"`
	CVV       string `validate:"required"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Address   string `validate:"required"`
	City      string `validate:"required"`
	State     string `validate:"required"`
	ZipCode   string `validate:"required"`
	Phone     string `validate:"required"`
}

// PaymentDetails is polymorphic over the two payment variants. Exactly one
// variant's fields are populated per request.
type PaymentDetails struct {
	Method PaymentMethod `validate:"required,oneof=paypal card"`

	PaypalEmail    string
	PaypalPassword string

	Card *CardDetails
}

// CheckoutRequest is the immutable input to a run. Built and validated by
// the input collector; the sequencer never mutates it.
type CheckoutRequest struct {
	Credentials Credentials
	Products    []ProductSelection
	Payment     PaymentDetails

	// Schedule, when non-zero, gates payment until the wall-clock time.
	Schedule time.Time
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError reports a bad or missing input field. It is raised before
// a run starts and never by the sequencer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate enforces the pre-run invariant: non-empty product list, complete
// credentials, and exactly the selected payment variant's fields set. The
// schedule time, if set, must not be in the past relative to now.
func (r *CheckoutRequest) Validate(now time.Time) error {
	if err := validate.Struct(r.Credentials); err != nil {
		return &ValidationError{Field: "credentials", Reason: "store email and password are required"}
	}

	if len(r.Products) == 0 {
		return &ValidationError{Field: "products", Reason: "at least one product is required"}
	}
	for i, p := range r.Products {
		if err := validate.Struct(p); err != nil {
			return &ValidationError{
				Field:  fmt.Sprintf("products[%d]", i),
				Reason: "product id, color and size are all required",
			}
		}
	}

	switch r.Payment.Method {
	case PaymentPayPal:
		if strings.TrimSpace(r.Payment.PaypalEmail) == "" || strings.TrimSpace(r.Payment.PaypalPassword) == "" {
			return &ValidationError{Field: "payment", Reason: "paypal email and password are required"}
		}
	case PaymentCard:
		if r.Payment.Card == nil {
			return &ValidationError{Field: "payment", Reason: "card details are required"}
		}
		if err := validate.Struct(r.Payment.Card); err != nil {
			return &ValidationError{Field: "payment", Reason: "all card and billing fields are required"}
		}
	default:
		return &ValidationError{Field: "payment", Reason: "payment method must be paypal or card"}
	}

	if !r.Schedule.IsZero() && r.Schedule.Before(now) {
		return &ValidationError{Field: "schedule", Reason: "scheduled time is in the past"}
	}

	return nil
}
