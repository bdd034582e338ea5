package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/services"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/Dhoini/Billing-service/pkg/req"
	"github.com/Dhoini/Billing-service/pkg/res"
)

// PaymentHandler обрабатывает HTTP запросы, связанные с платежами
// и сохраненными методами оплаты
type PaymentHandler struct {
	service *services.PaymentService
	log     *logger.Logger
}

// NewPaymentHandler создает новый экземпляр PaymentHandler
func NewPaymentHandler(service *services.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

// RefundRequest запрос на возврат средств
type RefundRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// InitiateCheckout обрабатывает POST /payments
func (h *PaymentHandler) InitiateCheckout(c *gin.Context) {
	body, err := req.HandleBody[domain.PaymentRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	output, err := h.service.InitiateCheckout(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, output, http.StatusCreated)
}

// CheckStatus обрабатывает GET /checkouts/:checkout_id/status.
// Вызывается после возврата покупателя с платежной формы шлюза.
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	checkoutID := c.Param("checkout_id")
	if checkoutID == "" {
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Missing checkout id"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	payment, err := h.service.CheckStatus(c.Request.Context(), checkoutID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, payment, http.StatusOK)
}

// GetPayment обрабатывает GET /payments/:payment_id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	payment, err := h.service.GetByID(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, payment, http.StatusOK)
}

// GetUserPayments обрабатывает GET /users/:user_id/payments
func (h *PaymentHandler) GetUserPayments(c *gin.Context) {
	userID, ok := h.parseUserID(c)
	if !ok {
		return
	}

	payments, err := h.service.GetByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, payments, http.StatusOK)
}

// Refund обрабатывает POST /payments/:payment_id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	paymentID, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	body, err := req.HandleBody[RefundRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	payment, err := h.service.Refund(c.Request.Context(), paymentID, body.Amount)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, payment, http.StatusOK)
}

// StorePaymentMethod обрабатывает POST /payment-methods
func (h *PaymentHandler) StorePaymentMethod(c *gin.Context) {
	body, err := req.HandleBody[domain.StorePaymentMethodRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	method, err := h.service.StorePaymentMethod(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, method, http.StatusCreated)
}

// GetUserPaymentMethods обрабатывает GET /users/:user_id/payment-methods
func (h *PaymentHandler) GetUserPaymentMethods(c *gin.Context) {
	userID, ok := h.parseUserID(c)
	if !ok {
		return
	}

	methods, err := h.service.GetPaymentMethods(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, methods, http.StatusOK)
}

// SetDefaultPaymentMethod обрабатывает PUT /users/:user_id/payment-methods/:method_id/default
func (h *PaymentHandler) SetDefaultPaymentMethod(c *gin.Context) {
	userID, ok := h.parseUserID(c)
	if !ok {
		return
	}
	methodID, ok := h.parseMethodID(c)
	if !ok {
		return
	}

	if err := h.service.SetDefaultPaymentMethod(c.Request.Context(), userID, methodID); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, gin.H{"status": "ok"}, http.StatusOK)
}

// DeactivatePaymentMethod обрабатывает DELETE /payment-methods/:method_id
func (h *PaymentHandler) DeactivatePaymentMethod(c *gin.Context) {
	methodID, ok := h.parseMethodID(c)
	if !ok {
		return
	}

	if err := h.service.DeactivatePaymentMethod(c.Request.Context(), methodID); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, gin.H{"status": "ok"}, http.StatusOK)
}

func (h *PaymentHandler) parsePaymentID(c *gin.Context) (uuid.UUID, bool) {
	paymentID, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		h.log.Warnw("Invalid payment id format", "raw", c.Param("payment_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid payment id"}, http.StatusBadRequest)
		c.Abort()
		return uuid.Nil, false
	}
	return paymentID, true
}

func (h *PaymentHandler) parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		h.log.Warnw("Invalid user id format", "raw", c.Param("user_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid user id"}, http.StatusBadRequest)
		c.Abort()
		return uuid.Nil, false
	}
	return userID, true
}

func (h *PaymentHandler) parseMethodID(c *gin.Context) (uuid.UUID, bool) {
	methodID, err := uuid.Parse(c.Param("method_id"))
	if err != nil {
		h.log.Warnw("Invalid payment method id format", "raw", c.Param("method_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid payment method id"}, http.StatusBadRequest)
		c.Abort()
		return uuid.Nil, false
	}
	return methodID, true
}
