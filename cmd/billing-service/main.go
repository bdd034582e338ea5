package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhoini/Billing-service/internal/app"
	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/db"
	"github.com/Dhoini/Billing-service/internal/http/routes"
	"github.com/Dhoini/Billing-service/internal/kafka"
	"github.com/Dhoini/Billing-service/internal/kafka/producer"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/middleware"
	"github.com/Dhoini/Billing-service/internal/peach"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/internal/services"
	"github.com/Dhoini/Billing-service/internal/tasks"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := initLogger()
	log.Infow("Billing service starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT secret is not set, admin endpoints will reject all tokens")
	}
	if cfg.Peach.EntityID == "" || cfg.Peach.AccessToken == "" {
		log.Warnw("Peach Payments credentials are not set")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// База данных
	dbClient, err := db.NewDBClient(cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Errorw("Error closing database connection", "error", err)
		}
	}()

	if err := dbClient.Migrate(ctx); err != nil {
		log.Fatalw("Failed to apply database migrations", "error", err)
	}

	pool, err := db.NewPgxPool(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to create connection pool", "error", err)
	}
	defer pool.Close()

	// Redis кеш
	var redisCache *repository.RedisCacheRepository
	if cfg.Redis.Addr != "" {
		redisCache, err = repository.NewRedisCacheRepository(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			log,
		)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
			redisCache = nil
		} else {
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
		}
	}

	// Репозитории
	userRepo := repository.NewPostgresUserRepository(pool, log)
	baseSubRepo := repository.NewPostgresSubscriptionRepository(pool, log)
	paymentRepo := repository.NewPostgresPaymentRepository(pool, log)
	methodRepo := repository.NewPostgresPaymentMethodRepository(pool, log)
	notificationRepo := repository.NewPostgresNotificationRepository(pool, log)

	var subRepo repository.SubscriptionRepository
	if redisCache != nil {
		subRepo = repository.NewCachedSubscriptionRepository(baseSubRepo, redisCache, log)
		log.Infow("Using cached subscription repository")
	} else {
		subRepo = baseSubRepo
		log.Infow("Using non-cached subscription repository")
	}

	// Платежный шлюз
	peachClient := peach.NewClient(cfg, log)

	// Kafka
	var kafkaProducer kafka.Producer
	var paymentProducer producer.PaymentProducer
	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureKafkaTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Errorw("Failed to ensure Kafka topics", "error", err)
		}

		kafkaProducer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
			kafkaProducer = nil
		} else {
			defer func() {
				if err := kafkaProducer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}

		saramaProducer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafka.NewSaramaConfig(kafka.NewConfig(cfg.Kafka.Brokers)))
		if err != nil {
			log.Errorw("Failed to initialize payment event producer", "error", err)
		} else {
			paymentProducer = producer.NewKafkaPaymentProducer(saramaProducer, log)
			defer func() {
				if err := paymentProducer.Close(); err != nil {
					log.Errorw("Error closing payment event producer", "error", err)
				}
			}()
		}
	} else {
		log.Warnw("Kafka brokers are not configured, event publishing disabled")
	}

	// Метрики
	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry, log)
	renewalMetrics := metrics.NewRenewalMetrics(registry, log)
	systemMetrics := metrics.NewSystemMetrics(registry, log)
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Сервисы
	userService := services.NewUserService(userRepo, log)
	notificationService := services.NewNotificationService(notificationRepo, userRepo, log)
	subscriptionService := services.NewSubscriptionService(subRepo, userRepo, notificationService, kafkaProducer, log)
	paymentService := services.NewPaymentService(
		cfg,
		paymentRepo,
		subRepo,
		userRepo,
		methodRepo,
		subscriptionService,
		notificationService,
		peachClient,
		kafkaProducer,
		paymentProducer,
		paymentMetrics,
		log,
	)

	// Фоновое продление подписок. Задача читает подписки напрямую из
	// основного хранилища: повторная проверка перед списанием не должна
	// видеть устаревшую запись из кеша
	renewalTask := tasks.NewRenewalTask(
		baseSubRepo,
		paymentService,
		subscriptionService,
		cfg.Renewal.Interval,
		time.Duration(cfg.Renewal.GracePeriodDays)*24*time.Hour,
		renewalMetrics,
		log,
	)
	go renewalTask.Start(ctx)

	// HTTP сервер
	validator := &middleware.DefaultTokenValidator{
		Secret: []byte(cfg.Auth.JWTSecret),
	}
	application := app.NewApp(cfg, userService, subscriptionService, paymentService, notificationService, validator, log)

	router := gin.New()
	routes.SetupRoutes(router, application, registry, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Infow("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}

// initLogger инициализирует новый логгер
func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
