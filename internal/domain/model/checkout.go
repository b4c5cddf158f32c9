package model

import "github.com/shopspring/decimal"

// CheckoutRequest asks for a payment prompt on the payer's phone.
// Amount is optional: when nil it defaults to the order total, or to one unit
// when no order is referenced.
type CheckoutRequest struct {
	PhoneNumber string
	Amount      *decimal.Decimal
	OrderNumber string
}

// PushRequest is the validated request handed to the payment gateway.
type PushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// PushResponse is the gateway acknowledgement of an accepted push.
type PushResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseDescription string
	CustomerMessage     string
}

// PushStatus is the answer of a gateway status lookup.
type PushStatus struct {
	CheckoutRequestID string
	Pending           bool
	ResultCode        int
	ResultDesc        string
}

// CallbackResult is the parsed asynchronous result posted by the gateway.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	PhoneNumber       string
	Amount            decimal.Decimal
}
