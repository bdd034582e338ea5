package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhoini/Billing-service/internal/app"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, app *app.App, registry *prometheus.Registry, log *logger.Logger) {
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())

	// Метрики Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		// Публичные маршруты (без аутентификации)
		api.POST("/webhooks/peach", app.WebhookHandler.HandlePeachWebhook)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		// Пользователи
		users := api.Group("/users")
		{
			users.POST("", app.UserHandler.Register)
			users.GET("", app.UserHandler.GetUserByEmail)
			users.GET("/:user_id", app.UserHandler.GetUser)
			users.GET("/:user_id/subscriptions", app.SubscriptionHandler.GetUserSubscriptions)
			users.GET("/:user_id/payments", app.PaymentHandler.GetUserPayments)
			users.GET("/:user_id/payment-methods", app.PaymentHandler.GetUserPaymentMethods)
			users.PUT("/:user_id/payment-methods/:method_id/default", app.PaymentHandler.SetDefaultPaymentMethod)
			users.GET("/:user_id/notifications", app.NotificationHandler.GetUserNotifications)
		}

		// Подписки
		subscriptions := api.Group("/subscriptions")
		{
			subscriptions.POST("", app.SubscriptionHandler.Create)
			subscriptions.GET("/:subscription_id", app.SubscriptionHandler.Get)
			subscriptions.DELETE("/:subscription_id", app.SubscriptionHandler.Cancel)
			subscriptions.POST("/:subscription_id/renew", app.SubscriptionHandler.Renew)
		}

		// Платежи
		payments := api.Group("/payments")
		{
			payments.POST("", app.PaymentHandler.InitiateCheckout)
			payments.GET("/:payment_id", app.PaymentHandler.GetPayment)
		}

		// Чекауты шлюза
		checkouts := api.Group("/checkouts")
		{
			checkouts.GET("/:checkout_id/status", app.PaymentHandler.CheckStatus)
		}

		// Методы оплаты
		methods := api.Group("/payment-methods")
		{
			methods.POST("", app.PaymentHandler.StorePaymentMethod)
			methods.DELETE("/:method_id", app.PaymentHandler.DeactivatePaymentMethod)
		}

		// Уведомления
		notifications := api.Group("/notifications")
		{
			notifications.POST("", app.NotificationHandler.Create)
			notifications.POST("/:notification_id/acknowledge", app.NotificationHandler.Acknowledge)
		}

		// Административные операции требуют JWT со scope admin
		admin := api.Group("")
		admin.Use(app.AuthMiddleware.RequireAuth("admin"))
		{
			admin.POST("/payments/:payment_id/refund", app.PaymentHandler.Refund)
		}
	}

	log.Infow("API routes successfully configured")
}
