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

// NotificationHandler обрабатывает HTTP запросы, связанные с уведомлениями
type NotificationHandler struct {
	service *services.NotificationService
	log     *logger.Logger
}

// NewNotificationHandler создает новый экземпляр NotificationHandler
func NewNotificationHandler(service *services.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

// Create обрабатывает POST /notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	body, err := req.HandleBody[domain.NotificationRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	notification, err := h.service.CreateTest(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, notification, http.StatusCreated)
}

// GetUserNotifications обрабатывает GET /users/:user_id/notifications
func (h *NotificationHandler) GetUserNotifications(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		h.log.Warnw("Invalid user id format", "raw", c.Param("user_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid user id"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	notifications, err := h.service.GetByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, notifications, http.StatusOK)
}

// Acknowledge обрабатывает POST /notifications/:notification_id/acknowledge.
// Повторное подтверждение возвращает 200, операция идемпотентна.
func (h *NotificationHandler) Acknowledge(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("notification_id"))
	if err != nil {
		h.log.Warnw("Invalid notification id format", "raw", c.Param("notification_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid notification id"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	notification, err := h.service.Acknowledge(c.Request.Context(), notificationID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, notification, http.StatusOK)
}
