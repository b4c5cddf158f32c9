package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/server/http/dto"
	"github.com/polkiloo/marketplace/internal/usecase"
)

const orderDateLayout = "2006-01-02"

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade OrderFacade
	logger *slog.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{facade: facade, logger: logger}
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid order payload")
		return
	}

	in := usecase.CreateOrder{
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		TotalAmount:       req.TotalAmount,
		PaymentMethod:     req.PaymentMethod,
		CheckoutRequestID: req.CheckoutRequestID,
		Items:             make([]usecase.CreateOrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.CreateOrderItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}

	order, err := h.facade.CreateOrder(c.Request.Context(), CurrentActor(c), in)
	if err != nil {
		writeError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateOrderResponse{
		Envelope:    dto.OK("Order created successfully"),
		OrderID:     order.ID,
		OrderNumber: order.Number,
	})
}

// UpdatePayment handles PUT /api/orders/payment.
func (h *OrderHandler) UpdatePayment(c *gin.Context) {
	var req dto.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payment payload")
		return
	}

	_, err := h.facade.UpdateOrderPayment(c.Request.Context(), usecase.PaymentUpdate{
		CheckoutRequestID: req.CheckoutRequestID,
		Status:            model.PaymentStatus(req.PaymentStatus),
		ReceiptNumber:     req.ReceiptNumber,
	})
	if err != nil {
		writeError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK("Order payment status updated"))
}

// List handles GET /api/orders.
func (h *OrderHandler) List(c *gin.Context) {
	actor := CurrentActor(c)
	if actor == nil {
		writeError(h.logger, c, domainErrors.ErrUnauthorized)
		return
	}

	orders, err := h.facade.Orders(c.Request.Context(), *actor)
	if err != nil {
		writeError(h.logger, c, err)
		return
	}

	response := dto.OrdersResponse{
		Envelope: dto.OK("Orders retrieved"),
		Orders:   make([]dto.OrderResponse, 0, len(orders)),
	}
	for _, o := range orders {
		response.Orders = append(response.Orders, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, response)
}

// UpdateStatus handles PUT /api/orders/:number/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	actor := CurrentActor(c)
	if actor == nil {
		writeError(h.logger, c, domainErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid status payload")
		return
	}

	err := h.facade.UpdateOrderStatus(c.Request.Context(), *actor, c.Param("number"), model.OrderStatus(req.Status))
	if err != nil {
		writeError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK("Order status updated successfully"))
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Image:       it.ImageURL,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return dto.OrderResponse{
		ID:            order.Number,
		CustomerName:  order.CustomerName,
		Items:         items,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Date:          order.CreatedAt.Format(orderDateLayout),
		Total:         order.TotalAmount,
		CreatedAt:     order.CreatedAt,
	}
}
