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

// SubscriptionHandler обрабатывает HTTP запросы, связанные с подписками
type SubscriptionHandler struct {
	service  *services.SubscriptionService
	payments *services.PaymentService
	log      *logger.Logger
}

// NewSubscriptionHandler создает новый экземпляр SubscriptionHandler
func NewSubscriptionHandler(
	service *services.SubscriptionService,
	payments *services.PaymentService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:  service,
		payments: payments,
		log:      log,
	}
}

// RenewResponse ответ на запрос ручного продления
type RenewResponse struct {
	Subscription domain.Subscription `json:"subscription"`
	Outcome      string              `json:"outcome"`
}

// Create обрабатывает POST /subscriptions
func (h *SubscriptionHandler) Create(c *gin.Context) {
	body, err := req.HandleBody[domain.SubscriptionRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	subscription, err := h.service.Create(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, subscription, http.StatusCreated)
}

// Get обрабатывает GET /subscriptions/:subscription_id
func (h *SubscriptionHandler) Get(c *gin.Context) {
	subscriptionID, ok := h.parseID(c)
	if !ok {
		return
	}

	subscription, err := h.service.GetByID(c.Request.Context(), subscriptionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, subscription, http.StatusOK)
}

// GetUserSubscriptions обрабатывает GET /users/:user_id/subscriptions
func (h *SubscriptionHandler) GetUserSubscriptions(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		h.log.Warnw("Invalid user id format", "raw", c.Param("user_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid user id"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	subscriptions, err := h.service.GetByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, subscriptions, http.StatusOK)
}

// Cancel обрабатывает DELETE /subscriptions/:subscription_id
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	subscriptionID, ok := h.parseID(c)
	if !ok {
		return
	}

	subscription, err := h.service.Cancel(c.Request.Context(), subscriptionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, subscription, http.StatusOK)
}

// Renew обрабатывает POST /subscriptions/:subscription_id/renew.
// Списание идет по сохраненному методу оплаты, как при фоновом продлении.
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	subscriptionID, ok := h.parseID(c)
	if !ok {
		return
	}

	outcome, err := h.payments.RenewSubscription(c.Request.Context(), subscriptionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	subscription, err := h.service.GetByID(c.Request.Context(), subscriptionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, RenewResponse{
		Subscription: subscription,
		Outcome:      string(outcome),
	}, http.StatusOK)
}

func (h *SubscriptionHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	subscriptionID, err := uuid.Parse(c.Param("subscription_id"))
	if err != nil {
		h.log.Warnw("Invalid subscription id format", "raw", c.Param("subscription_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid subscription id"}, http.StatusBadRequest)
		c.Abort()
		return uuid.Nil, false
	}
	return subscriptionID, true
}
