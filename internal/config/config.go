package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port string
		Env  string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Kafka struct {
		Brokers []string
	}
	Peach struct {
		BaseURL          string
		EntityID         string
		AccessToken      string
		SecretKey        string
		NotificationURL  string
		ShopperResultURL string
		Timeout          time.Duration
	}
	Renewal struct {
		Interval        time.Duration
		GracePeriodDays int
	}
	Auth struct {
		JWTSecret string
	}
}

// LoadConfig загружает конфигурацию из .env файла и переменных окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env опционален: в контейнере все приходит из окружения
		_ = godotenv.Load(path)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", []string{})
	v.SetDefault("PEACH_API_URL", "https://testsecure.peachpayments.com")
	v.SetDefault("PEACH_TIMEOUT", "30s")
	v.SetDefault("RENEWAL_INTERVAL", "1h")
	v.SetDefault("RENEWAL_GRACE_PERIOD_DAYS", 3)

	var cfg Config
	cfg.App.Port = v.GetString("PORT")
	cfg.App.Env = v.GetString("APP_ENV")
	cfg.Database.DSN = v.GetString("DATABASE_DSN")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Kafka.Brokers = v.GetStringSlice("KAFKA_BROKERS")
	cfg.Peach.BaseURL = v.GetString("PEACH_API_URL")
	cfg.Peach.EntityID = v.GetString("PEACH_ENTITY_ID")
	cfg.Peach.AccessToken = v.GetString("PEACH_ACCESS_TOKEN")
	cfg.Peach.SecretKey = v.GetString("PEACH_SECRET_KEY")
	cfg.Peach.NotificationURL = v.GetString("PEACH_NOTIFICATION_URL")
	cfg.Peach.ShopperResultURL = v.GetString("PEACH_SHOPPER_RESULT_URL")
	cfg.Peach.Timeout = v.GetDuration("PEACH_TIMEOUT")
	cfg.Renewal.Interval = v.GetDuration("RENEWAL_INTERVAL")
	cfg.Renewal.GracePeriodDays = v.GetInt("RENEWAL_GRACE_PERIOD_DAYS")
	cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")

	return &cfg, nil
}

// IsProduction сообщает, запущено ли приложение в production окружении
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
