package app

import (
	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/http/handlers"
	"github.com/Dhoini/Billing-service/internal/middleware"
	"github.com/Dhoini/Billing-service/internal/services"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config              *config.Config
	UserService         *services.UserService
	SubscriptionService *services.SubscriptionService
	PaymentService      *services.PaymentService
	NotificationService *services.NotificationService
	UserHandler         *handlers.UserHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	PaymentHandler      *handlers.PaymentHandler
	NotificationHandler *handlers.NotificationHandler
	WebhookHandler      *handlers.WebhookHandler
	AuthMiddleware      *middleware.JWTMiddleware
	LoggerMiddleware    gin.HandlerFunc
	Logger              *logger.Logger
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(
	cfg *config.Config,
	userService *services.UserService,
	subscriptionService *services.SubscriptionService,
	paymentService *services.PaymentService,
	notificationService *services.NotificationService,
	validator middleware.TokenValidator,
	log *logger.Logger,
) *App {
	userHandler := handlers.NewUserHandler(userService, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, paymentService, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, log)
	notificationHandler := handlers.NewNotificationHandler(notificationService, log)
	webhookHandler := handlers.NewWebhookHandler(paymentService, log)

	authMiddleware := middleware.NewJWTMiddleware(cfg, log, validator)
	loggerMiddleware := middleware.RequestLogger(log)

	return &App{
		Config:              cfg,
		UserService:         userService,
		SubscriptionService: subscriptionService,
		PaymentService:      paymentService,
		NotificationService: notificationService,
		UserHandler:         userHandler,
		SubscriptionHandler: subscriptionHandler,
		PaymentHandler:      paymentHandler,
		NotificationHandler: notificationHandler,
		WebhookHandler:      webhookHandler,
		AuthMiddleware:      authMiddleware,
		LoggerMiddleware:    loggerMiddleware,
		Logger:              log,
	}
}
