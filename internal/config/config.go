/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the pix-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                    string `mapstructure:"SERVER_PORT"`
	DatabaseURL                   string `mapstructure:"DATABASE_URL"`
	RedisURL                      string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix          string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                   string `mapstructure:"RABBITMQ_URL"`
	AuditEventExchange            string `mapstructure:"AUDIT_EVENT_EXCHANGE"`
	ProviderStatusExchange        string `mapstructure:"PROVIDER_STATUS_EXCHANGE"`
	ProviderStatusQueue           string `mapstructure:"PROVIDER_STATUS_QUEUE"`
	JWTSecret                     string `mapstructure:"JWT_SECRET"`
	TokenExpireMinutes            int    `mapstructure:"TOKEN_EXPIRE_MINUTES"`
	PromoCreditPercent            int64  `mapstructure:"PROMO_CREDIT_PERCENT"`
	PixSweepSchedule              string `mapstructure:"PIX_SWEEP_SCHEDULE"`
	TransactionRateLimitPerMinute int    `mapstructure:"TRANSACTION_RATE_LIMIT_PER_MINUTE"`
	ChargeRateLimitPerMinute      int    `mapstructure:"CHARGE_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AUDIT_EVENT_EXCHANGE", "pix_audit_events")
	viper.SetDefault("PROVIDER_STATUS_EXCHANGE", "pix_provider_events")
	viper.SetDefault("PROVIDER_STATUS_QUEUE", "pix_provider_status")
	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("TOKEN_EXPIRE_MINUTES", 30)
	viper.SetDefault("PROMO_CREDIT_PERCENT", 50)
	viper.SetDefault("PIX_SWEEP_SCHEDULE", "")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "pix:rate_limit")
	viper.SetDefault("TRANSACTION_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("CHARGE_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PIX_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUDIT_EVENT_EXCHANGE")
	_ = viper.BindEnv("PROVIDER_STATUS_EXCHANGE")
	_ = viper.BindEnv("PROVIDER_STATUS_QUEUE")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "SECRET_KEY")
	_ = viper.BindEnv("TOKEN_EXPIRE_MINUTES", "TOKEN_EXPIRE_MINUTES", "ACCESS_TOKEN_EXPIRE_MINUTES")
	_ = viper.BindEnv("PROMO_CREDIT_PERCENT")
	_ = viper.BindEnv("PIX_SWEEP_SCHEDULE")
	_ = viper.BindEnv("TRANSACTION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CHARGE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "pix:rate_limit"
	}
	config.PixSweepSchedule = strings.TrimSpace(config.PixSweepSchedule)

	if config.TokenExpireMinutes <= 0 {
		config.TokenExpireMinutes = 30
	}

	if config.PromoCreditPercent < 0 {
		log.Printf("level=warn component=config msg=\"negative promo credit percent configured; coercing to zero\" percent=%d", config.PromoCreditPercent)
		config.PromoCreditPercent = 0
	}
	if config.PromoCreditPercent > 100 {
		log.Printf("level=warn component=config msg=\"promo credit percent too high; capping at 100\" percent=%d", config.PromoCreditPercent)
		config.PromoCreditPercent = 100
	}

	if config.TransactionRateLimitPerMinute <= 0 {
		config.TransactionRateLimitPerMinute = 60
	}
	if config.ChargeRateLimitPerMinute <= 0 {
		config.ChargeRateLimitPerMinute = 30
	}

	return
}
