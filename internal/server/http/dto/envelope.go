package dto

// Envelope is the common part of every client-facing response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OK builds a successful envelope.
func OK(message string) Envelope {
	return Envelope{Success: true, Message: message}
}

// CallbackAck is the acknowledgement the payment gateway expects from the callback route.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var (
	CallbackAccepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
	CallbackRejected = CallbackAck{ResultCode: 1, ResultDesc: "Rejected"}
)
