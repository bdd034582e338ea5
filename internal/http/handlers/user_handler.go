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

// UserHandler обрабатывает HTTP запросы, связанные с пользователями
type UserHandler struct {
	service *services.UserService
	log     *logger.Logger
}

// NewUserHandler создает новый экземпляр UserHandler
func NewUserHandler(service *services.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

// Register обрабатывает POST /users
func (h *UserHandler) Register(c *gin.Context) {
	body, err := req.HandleBody[domain.UserRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	user, err := h.service.Register(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, user, http.StatusCreated)
}

// GetUserByEmail обрабатывает GET /users?email=...
func (h *UserHandler) GetUserByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Query parameter 'email' is required"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	user, err := h.service.GetByEmail(c.Request.Context(), email)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, user, http.StatusOK)
}

// GetUser обрабатывает GET /users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		h.log.Warnw("Invalid user id format", "raw", c.Param("user_id"))
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid user id"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	user, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, user, http.StatusOK)
}
