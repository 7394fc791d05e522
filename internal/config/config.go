package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	DBDSN             string
	Environment       string
	LogLevel          string
	JWTSecret         string
	InternalToken     string
	AMQPURL           string
	RedisAddr         string
	MigrationsDir     string
	ReconcileInterval time.Duration
	NoShowInterval    time.Duration
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Читаем напрямую из переменных окружения (после godotenv.Load они там)
	cfg := &Config{
		HTTPAddr:      os.Getenv("HTTP_ADDR"),
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   os.Getenv("ENV"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		InternalToken: os.Getenv("INTERNAL_TOKEN"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}

	var err error
	cfg.ReconcileInterval, err = durationEnv("RECONCILE_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.NoShowInterval, err = durationEnv("NO_SHOW_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.InternalToken == "" {
		return nil, fmt.Errorf("INTERNAL_TOKEN is required but not set")
	}

	return cfg, nil
}

// durationEnv читает duration из переменной окружения с дефолтным значением
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
