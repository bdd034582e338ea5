package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Billing-service/internal/services"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/Dhoini/Billing-service/pkg/res"
)

// WebhookHandler обрабатывает нотификации платежного шлюза
type WebhookHandler struct {
	service *services.PaymentService
	log     *logger.Logger
}

// NewWebhookHandler создает новый экземпляр WebhookHandler
func NewWebhookHandler(service *services.PaymentService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log,
	}
}

// HandlePeachWebhook обрабатывает POST /webhooks/peach.
// Шлюз присылает результат платежа формой, подпись - в параметре signature
// или заголовке X-Signature. Ответ 200 подтверждает доставку, на любые
// другие статусы шлюз повторяет отправку.
func (h *WebhookHandler) HandlePeachWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.log.Warnw("Failed to parse webhook form", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid webhook payload"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" {
		signature = params["signature"]
	}

	h.log.Infow("Webhook received", "merchantTransactionID", params["merchantTransactionId"])

	payment, err := h.service.HandleWebhook(c.Request.Context(), params, signature)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, gin.H{
		"status":     "ok",
		"payment_id": payment.ID,
	}, http.StatusOK)
}
