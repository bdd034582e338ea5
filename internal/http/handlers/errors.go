package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/Dhoini/Billing-service/pkg/res"
	"github.com/gin-gonic/gin"
)

// respondError транслирует доменную ошибку в HTTP статус и JSON-ответ
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "Record not found"
	case errors.Is(err, domain.ErrPaymentMethodNotFound):
		status = http.StatusNotFound
		message = "Payment method not found"
	case errors.Is(err, domain.ErrDuplicate):
		status = http.StatusConflict
		message = "Record already exists"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		message = "Record was modified concurrently"
	case errors.Is(err, domain.ErrInvalidOperation):
		status = http.StatusConflict
		message = "Operation not allowed in current state"
	case errors.Is(err, domain.ErrNoPaymentMethod):
		status = http.StatusConflict
		message = "No chargeable payment method on file"
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusUnprocessableEntity
		message = "Invalid request data"
	case errors.Is(err, domain.ErrUnsupportedPaymentMethod):
		status = http.StatusBadRequest
		message = "Unsupported payment method"
	case errors.Is(err, domain.ErrWebhookValidationFailed):
		status = http.StatusUnauthorized
		message = "Webhook signature validation failed"
	case errors.Is(err, domain.ErrPaymentFailed):
		status = http.StatusPaymentRequired
		message = "Payment failed"
	case errors.Is(err, domain.ErrExternalServiceUnavailable):
		status = http.StatusBadGateway
		message = "Payment gateway unavailable"
	}

	if status == http.StatusInternalServerError {
		log.Errorw("Request failed with internal error", "error", err, "path", c.Request.URL.Path)
	} else {
		log.Warnw("Request failed", "error", err, "status", status, "path", c.Request.URL.Path)
	}

	res.JsonResponse(c.Writer, res.ErrorResponse{Error: message, ErrorCode: status}, status)
	c.Abort()
}
