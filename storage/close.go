package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Investa/pkg/logger"
	"Investa/storage/database"
	"Investa/storage/mq"
	"Investa/storage/redis"
)

// Close 关闭 Init 打开的连接：先停事件发布，再关会话后端
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if EventsAvailable() {
		if err := mq.Close(ctx); err != nil {
			logger.Logger.Error("Failed to close message queue", zap.Error(err))
		}
	}

	switch backend {
	case BackendRedis:
		if err := redis.Close(ctx); err != nil {
			logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	case BackendPostgres:
		if err := database.Close(ctx); err != nil {
			logger.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	logger.Logger.Info("Storage connections closed", zap.String("session_backend", backend))
}
