package ui

import (
	"strings"

	"github.com/gin-gonic/gin"

	"snapcart/internal/checkout"
)

// requestFromForm builds a CheckoutRequest from the submitted form. Field
// presence errors are left to Validate; this only handles shape problems
// like mismatched product columns or an unparseable schedule string.
func requestFromForm(c *gin.Context) (*checkout.CheckoutRequest, error) {
	ids := c.PostFormArray("product_id")
	colors := c.PostFormArray("color")
	sizes := c.PostFormArray("size")

	if len(colors) != len(ids) || len(sizes) != len(ids) {
		return nil, &checkout.ValidationError{Field: "products", Reason: "product rows are incomplete"}
	}

	var products []checkout.ProductSelection
	for i := range ids {
		p := checkout.ProductSelection{
			ID:    strings.TrimSpace(ids[i]),
			Color: strings.TrimSpace(colors[i]),
			Size:  strings.TrimSpace(sizes[i]),
		}
		// Fully blank rows are the form's empty trailing rows, not input.
		if p.ID == "" && p.Color == "" && p.Size == "" {
			continue
		}
		products = append(products, p)
	}

	req := &checkout.CheckoutRequest{
		Credentials: checkout.Credentials{
			Email:    strings.TrimSpace(c.PostForm("email")),
			Password: c.PostForm("password"),
		},
		Products: products,
	}

	method := checkout.PaymentMethod(c.DefaultPostForm("payment_method", string(checkout.PaymentPayPal)))
	req.Payment.Method = method

	switch method {
	case checkout.PaymentCard:
		req.Payment.Card = &checkout.CardDetails{
			Number:    strings.TrimSpace(c.PostForm("card_number")),
			Expiry:    strings.TrimSpace(c.PostForm("card_expiry")),
			CVV:       strings.TrimSpace(c.PostForm("card_cvv")),
			FirstName: strings.TrimSpace(c.PostForm("first_name")),
			LastName:  strings.TrimSpace(c.PostForm("last_name")),
			Address:   strings.TrimSpace(c.PostForm("address")),
			City:      strings.TrimSpace(c.PostForm("city")),
			State:     strings.TrimSpace(c.PostForm("state")),
			ZipCode:   strings.TrimSpace(c.PostForm("zip_code")),
			Phone:     strings.TrimSpace(c.PostForm("phone")),
		}
	default:
		req.Payment.PaypalEmail = strings.TrimSpace(c.PostForm("paypal_email"))
		req.Payment.PaypalPassword = c.PostForm("paypal_password")
	}

	if schedule := strings.TrimSpace(c.PostForm("schedule")); schedule != "" {
		t, err := checkout.ParseScheduleTime(schedule)
		if err != nil {
			return nil, &checkout.ValidationError{Field: "schedule", Reason: err.Error()}
		}
		req.Schedule = t
	}

	return req, nil
}
