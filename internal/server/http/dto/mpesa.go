package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// STKPushRequest asks for a payment prompt on the payer's phone.
type STKPushRequest struct {
	PhoneNumber string           `json:"phoneNumber"`
	Amount      *decimal.Decimal `json:"amount"`
	OrderNumber string           `json:"orderNumber"`
}

// STKPushResponse is returned once the gateway accepted the push.
type STKPushResponse struct {
	Envelope
	CheckoutRequestID string `json:"checkoutRequestID"`
	MerchantRequestID string `json:"merchantRequestID"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

// TransactionStatusResponse reports the tracked state of a checkout.
type TransactionStatusResponse struct {
	Envelope
	Status  string              `json:"status"`
	Details TransactionResponse `json:"details"`
}

// TransactionResponse describes a tracked checkout.
type TransactionResponse struct {
	CheckoutRequestID string          `json:"checkoutRequestId"`
	OrderNumber       string          `json:"orderNumber,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	PhoneNumber       string          `json:"phoneNumber"`
	Status            string          `json:"status"`
	ResultCode        *int            `json:"resultCode,omitempty"`
	ResultDesc        string          `json:"resultDesc,omitempty"`
	ReceiptNumber     string          `json:"receiptNumber,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
