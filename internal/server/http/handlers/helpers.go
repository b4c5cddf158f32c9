package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/server/http/dto"
	"github.com/polkiloo/marketplace/internal/server/http/middleware"
)

const internalErrorMessage = "internal server error"

// CurrentActor returns the authenticated actor or nil for anonymous requests.
func CurrentActor(c *gin.Context) *model.Actor {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return nil
	}
	return &actor
}

var kindStatus = map[string]int{
	"validation":          http.StatusBadRequest,
	"not_found":           http.StatusNotFound,
	"conflict":            http.StatusConflict,
	"payment_settled":     http.StatusConflict,
	"unauthorized":        http.StatusUnauthorized,
	"forbidden":           http.StatusForbidden,
	"network_unavailable": http.StatusServiceUnavailable,
	"gateway_unreachable": http.StatusServiceUnavailable,
	"gateway_timeout":     http.StatusGatewayTimeout,
	"gateway_transport":   http.StatusBadGateway,
	"gateway_rejected":    http.StatusBadGateway,
	"gateway_malformed":   http.StatusBadGateway,
}

// errorResponse maps err to an HTTP status and envelope. Unclassified errors
// are logged and reported with a generic message.
func errorResponse(logger *slog.Logger, c *gin.Context, err error) (int, dto.Envelope) {
	kind := domainErrors.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		return http.StatusInternalServerError, dto.Envelope{Message: internalErrorMessage, Kind: kind}
	}

	env := dto.Envelope{Message: err.Error(), Kind: kind}
	var validation *domainErrors.ValidationError
	if errors.As(err, &validation) {
		env.Message = validation.Reason
		env.Field = validation.Field
	}
	var gateway *domainErrors.GatewayError
	if errors.As(err, &gateway) {
		env.Code = gateway.Code
	}
	return status, env
}

// writeError also records err on the context so the request log carries it.
func writeError(logger *slog.Logger, c *gin.Context, err error) {
	_ = c.Error(err)
	status, env := errorResponse(logger, c, err)
	c.JSON(status, env)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.Envelope{Message: message, Kind: "validation"})
}
