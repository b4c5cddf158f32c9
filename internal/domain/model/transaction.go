package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction tracks one checkout push from initiation until the gateway settles it.
type Transaction struct {
	CheckoutRequestID string
	MerchantRequestID string
	OrderNumber       string
	Amount            decimal.Decimal
	PhoneNumber       string
	Status            PaymentStatus
	ResultCode        *int
	ResultDesc        string
	ReceiptNumber     string
	Reconciled        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Settlement is the outcome the gateway reported for a transaction.
type Settlement struct {
	Status        PaymentStatus
	ResultCode    *int
	ResultDesc    string
	ReceiptNumber string
}

// SettlementFromResult maps a gateway result code to a settlement.
// Zero means the payment went through; anything else is a failure.
func SettlementFromResult(code int, desc, receipt string) Settlement {
	status := PaymentStatusFailed
	if code == 0 {
		status = PaymentStatusCompleted
	}
	return Settlement{Status: status, ResultCode: &code, ResultDesc: desc, ReceiptNumber: receipt}
}

// Apply copies the settlement onto the transaction.
func (t *Transaction) Apply(s Settlement) {
	t.Status = s.Status
	t.ResultCode = s.ResultCode
	t.ResultDesc = s.ResultDesc
	if s.ReceiptNumber != "" {
		t.ReceiptNumber = s.ReceiptNumber
	}
	t.Reconciled = false
}
