package storage

import (
	"go.uber.org/zap"

	"Investa/config"
	"Investa/pkg/logger"
	"Investa/storage/database"
	"Investa/storage/mq"
	"Investa/storage/redis"
)

// 会话持久化后端
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var backend = BackendMemory

// Init 按配置初始化存储层。
// 会话后端连不上时降级为内存，事件队列连不上时关闭事件发布，二者都不阻止启动。
func Init() {
	backend = config.Cfg.SessionBackend

	switch backend {
	case BackendRedis:
		if err := redis.Init(); err != nil {
			logger.Logger.Warn("Redis unavailable, session falls back to memory", zap.Error(err))
			backend = BackendMemory
		}
	case BackendPostgres:
		if err := database.Init(); err != nil {
			logger.Logger.Warn("PostgreSQL unavailable, session falls back to memory", zap.Error(err))
			backend = BackendMemory
		}
	default:
		backend = BackendMemory
	}

	if config.Cfg.EventsEnabled {
		if err := mq.Init(); err != nil {
			logger.Logger.Warn("RabbitMQ unavailable, onboarding events disabled", zap.Error(err))
		}
	}

	logger.Logger.Info("Storage initialized",
		zap.String("session_backend", backend),
		zap.Bool("events", EventsAvailable()),
	)
}

// SessionBackend 实际生效的会话后端
func SessionBackend() string {
	return backend
}

// EventsAvailable 事件队列是否已连接
func EventsAvailable() bool {
	return mq.Connection() != nil
}
