package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"Investa/config"
	dbotel "Investa/pkg/database"
	"Investa/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// Init 打开会话表所在的 PostgreSQL 并迁移 session_entries。
// 与 Redis 一样连不上时由 storage 降级到内存。
func Init() error {
	dbOnce.Do(func() {
		dbErr = open(config.Cfg)
	})
	return dbErr
}

func open(cfg config.Config) error {
	gormDB, err := gorm.Open(postgres.Open(cfg.GetDSN()+" connect_timeout=3"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.TracingEnabled {
		if err := gormDB.Use(dbotel.NewOTELPlugin(cfg.ServiceName)); err != nil {
			logger.Logger.Warn("Failed to register gorm tracing plugin", zap.Error(err))
		}
	}

	if err := Migrate(gormDB); err != nil {
		_ = sqlDB.Close()
		return err
	}

	db = gormDB
	logger.Logger.Info("Session database ready", zap.String("schema", cfg.PostgreSQLSchema))
	return nil
}

// DB 未初始化时为 nil
func DB() *gorm.DB {
	return db
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sqlDB.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
