package mpesa

import (
	"errors"
	"testing"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
)

func TestParseCallbackSuccess(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"29115-34620561-1",
		"CheckoutRequestID":"ws_CO_191220191020363925",
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":1.00},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"Balance"},
			{"Name":"TransactionDate","Value":20191219102115},
			{"Name":"PhoneNumber","Value":254708374149}
		]}}}}`)

	result, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CheckoutRequestID != "ws_CO_191220191020363925" || result.ResultCode != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ReceiptNumber != "NLJ7RT61SV" || result.PhoneNumber != "254708374149" {
		t.Fatalf("unexpected metadata: %+v", result)
	}
	if result.Amount.String() != "1" {
		t.Fatalf("unexpected amount %s", result.Amount)
	}
}

func TestParseCallbackFailure(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"ws_CO_1",
		"ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)

	result, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResultCode != 1032 || result.ResultDesc != "Request cancelled by user" || result.ReceiptNumber != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseCallbackMalformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":       `{"Body":`,
		"missing checkout":   `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"missing resultcode": `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCallback([]byte(body)); !errors.Is(err, domainErrors.ErrMalformedResponse) {
				t.Fatalf("expected malformed error, got %v", err)
			}
		})
	}
}
