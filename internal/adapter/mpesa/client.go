package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/polkiloo/marketplace/internal/config"
	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

const (
	timestampLayout     = "20060102150405"
	transactionType     = "CustomerPayBillOnline"
	defaultDescription  = "Payment for products"
	pendingErrorCode    = "500.001.1001"
	tokenExpiryMargin   = time.Minute
	maxErrorBodyBytes   = 4 << 10
	tokenPath           = "/oauth/v1/generate"
	processRequestPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath           = "/mpesa/stkpushquery/v1/query"
	stageToken          = "token"
	stagePush           = "stkpush"
	stageQuery          = "query"
	responseCodeSuccess = "0"
)

// eastAfrica is the zone the gateway expects request timestamps in.
var eastAfrica = time.FixedZone("EAT", 3*60*60)

// Client exposes the STK push operations of the payment gateway.
type Client interface {
	STKPush(ctx context.Context, req model.PushRequest) (*model.PushResponse, error)
	Query(ctx context.Context, checkoutID string) (*model.PushStatus, error)
}

// HTTPClient implements Client against the Daraja REST API.
type HTTPClient struct {
	baseURL          *url.URL
	consumerKey      string
	consumerSecret   string
	shortCode        string
	passkey          string
	callbackURL      string
	accountReference string
	timeout          time.Duration
	httpClient       *http.Client
	logger           *slog.Logger
	now              func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

type pushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type pushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type queryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type queryResponse struct {
	ResponseCode        string      `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResultCode          json.Number `json:"ResultCode"`
	ResultDesc          string      `json:"ResultDesc"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// NewHTTPClient creates a gateway client from configuration.
func NewHTTPClient(cfg config.MpesaConfig, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse mpesa url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("mpesa url must be absolute")
	}
	return &HTTPClient{
		baseURL:          parsed,
		consumerKey:      cfg.ConsumerKey,
		consumerSecret:   cfg.ConsumerSecret,
		shortCode:        cfg.ShortCode,
		passkey:          cfg.Passkey,
		callbackURL:      cfg.CallbackURL,
		accountReference: cfg.AccountReference,
		timeout:          cfg.Timeout,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		logger:           logger,
		now:              time.Now,
	}, nil
}

// Token returns a bearer token, reusing the cached one until shortly before it expires.
func (c *HTTPClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, tokenPath, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("grant_type", "client_credentials")
	req.URL.RawQuery = q.Encode()
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	var data tokenResponse
	if err := c.do(req, stageToken, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("%s: %w: missing access_token", stageToken, domainErrors.ErrMalformedResponse)
	}

	ttl := time.Hour
	if seconds, err := data.ExpiresIn.Int64(); err == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}
	c.token = data.AccessToken
	c.tokenExpiry = c.now().Add(ttl - tokenExpiryMargin)
	return c.token, nil
}

func (c *HTTPClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// STKPush asks the gateway to prompt the payer's phone for the amount.
func (c *HTTPClient) STKPush(ctx context.Context, in model.PushRequest) (*model.PushResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.timestamp()
	payload := pushPayload{
		BusinessShortCode: c.shortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            in.Amount.Ceil().IntPart(),
		PartyA:            in.PhoneNumber,
		PartyB:            c.shortCode,
		PhoneNumber:       in.PhoneNumber,
		CallBackURL:       c.callbackURL,
		AccountReference:  firstNonEmpty(in.AccountReference, c.accountReference),
		TransactionDesc:   firstNonEmpty(in.Description, defaultDescription),
	}

	req, err := c.newJSONRequest(ctx, processRequestPath, token, payload)
	if err != nil {
		return nil, err
	}

	var data pushResponse
	if err := c.do(req, stagePush, &data); err != nil {
		c.dropTokenOnAuthFailure(err)
		return nil, err
	}
	if data.ResponseCode != responseCodeSuccess {
		return nil, &domainErrors.GatewayError{
			Stage:      stagePush,
			StatusCode: http.StatusOK,
			Code:       data.ResponseCode,
			Detail:     data.ResponseDescription,
		}
	}
	if data.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%s: %w: missing CheckoutRequestID", stagePush, domainErrors.ErrMalformedResponse)
	}

	c.logger.Info("stk push accepted",
		slog.String("checkout_request_id", data.CheckoutRequestID),
		slog.String("merchant_request_id", data.MerchantRequestID),
	)

	return &model.PushResponse{
		MerchantRequestID:   data.MerchantRequestID,
		CheckoutRequestID:   data.CheckoutRequestID,
		ResponseDescription: data.ResponseDescription,
		CustomerMessage:     data.CustomerMessage,
	}, nil
}

// Query looks up the outcome of a previously sent push.
func (c *HTTPClient) Query(ctx context.Context, checkoutID string) (*model.PushStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.timestamp()
	req, err := c.newJSONRequest(ctx, queryPath, token, queryPayload{
		BusinessShortCode: c.shortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutID,
	})
	if err != nil {
		return nil, err
	}

	var data queryResponse
	if err := c.do(req, stageQuery, &data); err != nil {
		var gwErr *domainErrors.GatewayError
		if errors.As(err, &gwErr) && gwErr.Code == pendingErrorCode {
			return &model.PushStatus{CheckoutRequestID: checkoutID, Pending: true, ResultDesc: gwErr.Detail}, nil
		}
		c.dropTokenOnAuthFailure(err)
		return nil, err
	}

	if data.ResultCode == "" {
		return &model.PushStatus{CheckoutRequestID: checkoutID, Pending: true, ResultDesc: data.ResponseDescription}, nil
	}
	code, err := data.ResultCode.Int64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: result code %q", stageQuery, domainErrors.ErrMalformedResponse, data.ResultCode)
	}
	return &model.PushStatus{
		CheckoutRequestID: checkoutID,
		ResultCode:        int(code),
		ResultDesc:        data.ResultDesc,
	}, nil
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *HTTPClient) timestamp() string {
	return c.now().In(eastAfrica).Format(timestampLayout)
}

// password derives the per-request credential. It must never be logged.
func (c *HTTPClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp))
}

func (c *HTTPClient) dropTokenOnAuthFailure(err error) {
	var gwErr *domainErrors.GatewayError
	if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, p)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPClient) newJSONRequest(ctx context.Context, p, token string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, p, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// do sends req and decodes a successful JSON body into out.
func (c *HTTPClient) do(req *http.Request, stage string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(stage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		gwErr := &domainErrors.GatewayError{Stage: stage, StatusCode: resp.StatusCode, Detail: resp.Status}
		var data errorResponse
		if json.Unmarshal(body, &data) == nil && data.ErrorCode != "" {
			gwErr.Code = data.ErrorCode
			gwErr.Detail = data.ErrorMessage
		}
		c.logger.Warn("payment gateway request failed",
			slog.String("stage", stage),
			slog.Int("status", resp.StatusCode),
			slog.String("code", gwErr.Code),
		)
		return gwErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return classifyTransportError(stage, err)
		}
		return fmt.Errorf("%s: %w: %v", stage, domainErrors.ErrMalformedResponse, err)
	}
	return nil
}

func classifyTransportError(stage string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w", stage, domainErrors.ErrGatewayTimeout)
	}
	return fmt.Errorf("%s: %w: %v", stage, domainErrors.ErrGatewayTransport, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
