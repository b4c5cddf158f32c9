package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/marketplace/internal/adapter/mpesa"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/server/http/dto"
)

const maxCallbackBody = 64 << 10

// MpesaHandler serves checkout initiation, status lookups and gateway callbacks.
type MpesaHandler struct {
	facade PaymentFacade
	logger *slog.Logger
}

// NewMpesaHandler constructs MpesaHandler.
func NewMpesaHandler(facade PaymentFacade, logger *slog.Logger) *MpesaHandler {
	return &MpesaHandler{facade: facade, logger: logger}
}

// STKPush handles POST /api/mpesa/stkpush.
func (h *MpesaHandler) STKPush(c *gin.Context) {
	var req dto.STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid checkout payload")
		return
	}

	resp, err := h.facade.InitiateCheckout(c.Request.Context(), model.CheckoutRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		OrderNumber: req.OrderNumber,
	})
	if err != nil {
		writeError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.STKPushResponse{
		Envelope:          dto.OK("STK push sent successfully"),
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	})
}

// Status handles GET /api/mpesa/status/:checkoutID.
func (h *MpesaHandler) Status(c *gin.Context) {
	tx, err := h.facade.TransactionStatus(c.Request.Context(), c.Param("checkoutID"))
	if err != nil {
		writeError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TransactionStatusResponse{
		Envelope: dto.OK("Payment " + string(tx.Status)),
		Status:   string(tx.Status),
		Details: dto.TransactionResponse{
			CheckoutRequestID: tx.CheckoutRequestID,
			OrderNumber:       tx.OrderNumber,
			Amount:            tx.Amount,
			PhoneNumber:       tx.PhoneNumber,
			Status:            string(tx.Status),
			ResultCode:        tx.ResultCode,
			ResultDesc:        tx.ResultDesc,
			ReceiptNumber:     tx.ReceiptNumber,
			CreatedAt:         tx.CreatedAt,
			UpdatedAt:         tx.UpdatedAt,
		},
	})
}

// Callback handles POST /api/mpesa/callback. Malformed payloads are rejected
// with 400, store failures with 500 so the gateway retries; everything else,
// unknown checkout ids included, is acknowledged.
func (h *MpesaHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("read callback body failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.CallbackRejected)
		return
	}

	result, err := mpesa.ParseCallback(body)
	if err != nil {
		h.logger.Warn("malformed callback rejected", slog.String("error", err.Error()), slog.Int("size", len(body)))
		c.JSON(http.StatusBadRequest, dto.CallbackRejected)
		return
	}

	if err := h.facade.HandleCallback(c.Request.Context(), *result); err != nil {
		h.logger.Error("callback processing failed",
			slog.String("checkout_request_id", result.CheckoutRequestID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.CallbackRejected)
		return
	}

	c.JSON(http.StatusOK, dto.CallbackAccepted)
}
