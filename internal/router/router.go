package router

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	redislib "github.com/redis/go-redis/v9"

	"Investa/internal/handler"
	"Investa/internal/middleware"
)

// Options 路由依赖中可选的部分
type Options struct {
	AllowedOrigins []string
	// RateLimiter 为空时认证接口不限流
	RateLimiter       redislib.UniversalClient
	RateLimitKey      func(parts ...string) string
	AuthRatePerMinute int
	TracingMiddleware app.HandlerFunc
}

func Register(h *server.Hertz, hd *handler.Handler, session middleware.SessionGate, opts Options) {
	h.Use(middleware.RecoverMiddleware())
	if opts.TracingMiddleware != nil {
		h.Use(opts.TracingMiddleware)
	}
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	h.Use(middleware.MetricsMiddleware())

	v1 := h.Group("/v1")
	v1.GET("/session", hd.GetSession)

	// 认证相关路由
	auth := v1.Group("/auth")
	{
		limited := auth.Group("", middleware.AuthRateLimitMiddleware(opts.RateLimiter, opts.AuthRatePerMinute, opts.RateLimitKey))
		limited.POST("/login", hd.Login)
		limited.POST("/register", hd.Register)
		limited.POST("/phone/verify", hd.VerifyPhone)

		auth.POST("/logout", hd.Logout)
	}

	phone := v1.Group("/phone")
	{
		phone.GET("/countries", hd.ListCountries)
		phone.POST("/normalize", hd.NormalizePhone)
	}

	// 引导流程路由
	onboarding := v1.Group("/onboarding", middleware.RequireSession(session))
	{
		onboarding.GET("", hd.GetOnboarding)
		onboarding.POST("/start", hd.StartOnboarding)
		onboarding.POST("/profile", hd.SubmitProfile)
		onboarding.POST("/trial", hd.ActivateTrial)
		onboarding.POST("/skip", hd.SkipOnboarding)
		onboarding.POST("/clear-error", hd.ClearOnboardingError)
	}

	// 订阅路由
	subs := v1.Group("/subscriptions", middleware.RequireSession(session))
	{
		subs.GET("/me", hd.GetMySubscription)
		subs.POST("/:id/cancel", hd.CancelSubscription)
	}
}
