package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "Investa/config"
	"Investa/internal/api"
	"Investa/internal/cache"
	"Investa/internal/handler"
	"Investa/internal/middleware"
	"Investa/internal/model"
	"Investa/internal/queue"
	"Investa/internal/repository"
	"Investa/internal/router"
	"Investa/internal/service"
	"Investa/internal/session"
	"Investa/pkg/logger"
	"Investa/pkg/metrics"
	"Investa/pkg/otel"
	"Investa/pkg/snowflake"
	"Investa/storage"
	"Investa/storage/database"
	"Investa/storage/redis"
	"Investa/utils"
)

func main() {
	// 日志部分
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if appcfg.Cfg.TracingEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:    appcfg.Cfg.ServiceName,
			ServiceVersion: appcfg.Cfg.ServiceVersion,
			Environment:    appcfg.Cfg.Environment,
			OTLPEndpoint:   appcfg.Cfg.OTLPEndpoint,
			SampleRatio:    appcfg.Cfg.TracingSampler,
		})
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry, tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Logger.Warn("Failed to shutdown OpenTelemetry", zap.Error(err))
				}
			}()
		}
	}

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize metrics", zap.Error(err))
	}

	if err := snowflake.Init(appcfg.Cfg.SnowflakeMachineID, appcfg.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	// 初始化存储层，连不上的后端会降级，记得关闭外部连接
	storage.Init()
	defer storage.Close()

	store, err := newSessionStore(ctx)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize session store", zap.Error(err))
	}

	client, err := api.New(api.Options{
		BaseURL:     appcfg.Cfg.APIBaseURL,
		DialTimeout: time.Duration(appcfg.Cfg.APIDialTimeoutSeconds) * time.Second,
		ReadTimeout: time.Duration(appcfg.Cfg.APIReadTimeoutSeconds) * time.Second,
		Tracing:     appcfg.Cfg.TracingEnabled,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to create backend client", zap.Error(err))
	}
	// token 管理器依赖 client 刷新，client 的鉴权请求又依赖 token 管理器
	tokens := service.NewTokenManager(store, client, appcfg.Cfg.RefreshRetryDelay())
	client.SetTokenSource(tokens)

	onboardingOpts := service.OrchestratorOptions{
		SettleDelay: appcfg.Cfg.OnboardingSettleDelay(),
		OnComplete: func(state model.OnboardingState) {
			logger.Logger.Info("Onboarding finished", zap.String("step", string(state.Step)))
		},
	}
	if storage.EventsAvailable() {
		onboardingOpts.Events = queue.NewEventProducer(appcfg.Cfg.EventsExchange)
	}

	facade := service.NewFacade(store)
	auth := service.NewAuthService(store, client, tokens, onboardingOpts)

	var serverOpts []config.Option
	serverOpts = append(serverOpts, server.WithHostPorts(appcfg.Cfg.GatewayAddr()))

	var tracing app.HandlerFunc
	if appcfg.Cfg.TracingEnabled {
		tracerOpt, mw := middleware.NewServerTracerConfig()
		serverOpts = append(serverOpts, tracerOpt)
		tracing = mw
	}

	h := server.New(serverOpts...)

	routerOpts := router.Options{
		AllowedOrigins:    appcfg.Cfg.GatewayAllowedOrigins,
		RateLimitKey:      redis.Key,
		AuthRatePerMinute: appcfg.Cfg.AuthRateLimitPerMinute,
		TracingMiddleware: tracing,
	}
	// 只有 redis 后端可用时才限流，避免把 nil *redis.Client 装进接口
	if storage.SessionBackend() == storage.BackendRedis {
		var limiter redislib.UniversalClient = redis.Client()
		routerOpts.RateLimiter = limiter
	}
	router.Register(h, handler.New(auth, facade, store), auth, routerOpts)

	logger.Logger.Info("Gateway starting",
		zap.String("service", appcfg.Cfg.ServiceName),
		zap.String("addr", appcfg.Cfg.GatewayAddr()),
		zap.String("session_backend", storage.SessionBackend()),
		zap.String("environment", appcfg.Cfg.Environment),
	)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	h.Spin()

	logger.Logger.Info("Gateway shutting down gracefully")
}

// newSessionStore 按实际生效的后端构建会话存储，并恢复上次的会话
func newSessionStore(ctx context.Context) (*session.Store, error) {
	var kv session.KV
	switch storage.SessionBackend() {
	case storage.BackendRedis:
		kv = cache.NewSessionKV(nil)
	case storage.BackendPostgres:
		kv = repository.NewSessionKV(database.DB())
	default:
		kv = session.NewMemoryKV()
	}

	opts := []session.Option{session.WithLeeway(appcfg.Cfg.TokenLeeway())}
	if appcfg.Cfg.EncryptionKey != "" {
		cipher, err := utils.NewCipher([]byte(appcfg.Cfg.EncryptionKey))
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithCodec(cipher))
	}

	store := session.NewStore(kv, opts...)
	if err := store.Restore(ctx); err != nil {
		// 恢复失败时从未登录状态开始
		logger.Logger.Warn("Failed to restore session", zap.Error(err))
	}
	return store, nil
}
