package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"equeue/internal/config"
	"equeue/internal/models"
)

// ConnectDatabase открывает подключение к Postgres и прогоняет миграции.
func ConnectDatabase(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect %s/%s: %w", cfg.Host, cfg.Name, err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	slog.Info("database connected", "host", cfg.Host, "db", cfg.Name)
	return db, nil
}

// InitRedis создаёт клиента Redis и проверяет соединение.
func InitRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// Close закрывает пул соединений gorm.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
