package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

type callbackEnvelope struct {
	Body struct {
		STKCallback struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes the asynchronous STK result posted by the gateway.
func ParseCallback(body []byte) (*model.CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMalformedResponse, err)
	}

	cb := env.Body.STKCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", domainErrors.ErrMalformedResponse)
	}
	code, err := cb.ResultCode.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: result code %q", domainErrors.ErrMalformedResponse, cb.ResultCode)
	}

	result := &model.CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(code),
		ResultDesc:        cb.ResultDesc,
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Value == nil {
			continue
		}
		value := fmt.Sprint(item.Value)
		switch item.Name {
		case "MpesaReceiptNumber":
			result.ReceiptNumber = value
		case "PhoneNumber":
			result.PhoneNumber = value
		case "Amount":
			if amount, err := decimal.NewFromString(value); err == nil {
				result.Amount = amount
			}
		}
	}
	return result, nil
}
