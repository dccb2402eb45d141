package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServiceName    string `env:"SERVICE_NAME" envDefault:"investa-agent"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production

	// 本地网关，只给 UI 壳使用，默认只监听回环地址
	GatewayHost string `env:"GATEWAY_HOST" envDefault:"127.0.0.1"`
	GatewayPort string `env:"GATEWAY_PORT" envDefault:"8787"`
	// 允许跨域访问网关的来源，回环地址总是允许
	GatewayAllowedOrigins  []string `env:"GATEWAY_ALLOWED_ORIGINS" envSeparator:","`
	AuthRateLimitPerMinute int      `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"10"` // 需要 redis 会话后端

	// 后端 API
	APIBaseURL            string `env:"API_BASE_URL" envDefault:"http://localhost:8888"`
	APIDialTimeoutSeconds int    `env:"API_DIAL_TIMEOUT_SECONDS" envDefault:"5"`
	APIReadTimeoutSeconds int    `env:"API_READ_TIMEOUT_SECONDS" envDefault:"15"`

	// 会话持久化：redis, postgres, memory
	SessionBackend string `env:"SESSION_BACKEND" envDefault:"redis"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"investa"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"2"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"5"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"investa"`

	// RabbitMQ 配置，引导流程事件
	EventsEnabled    bool   `env:"EVENTS_ENABLED" envDefault:"false"`
	EventsExchange   string `env:"EVENTS_EXCHANGE" envDefault:"onboarding.events"`
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// Token 生命周期
	TokenLeewaySeconds  int    `env:"TOKEN_LEEWAY_SECONDS" envDefault:"30"`    // 提前视为过期的秒数
	RefreshRetryDelayMS int    `env:"REFRESH_RETRY_DELAY_MS" envDefault:"300"` // 网络失败后重试一次前的等待
	OnboardingSettleMS  int    `env:"ONBOARDING_SETTLE_DELAY_MS" envDefault:"2000"`
	DefaultCountryCode  string `env:"DEFAULT_COUNTRY_CODE" envDefault:"KE"`

	// 加密配置
	EncryptionKey string `env:"ENCRYPTION_KEY"` // 可选，设置后会话在本地加密存储，32字节 AES-256
	PhoneHashSalt string `env:"PHONEHASH_SALT"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	TracingSampler float64 `env:"TRACING_SAMPLER" envDefault:"0.1"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	if Cfg.EncryptionKey != "" && len(Cfg.EncryptionKey) != 32 {
		log.Fatal("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if Cfg.EncryptionKey == "" {
		log.Printf("WARN: ENCRYPTION_KEY is not set, session tokens are stored in plain text")
	}

	if Cfg.PhoneHashSalt == "" {
		log.Printf("WARN: PHONEHASH_SALT is not set, phone hashes in logs are unsalted")
	}

	switch Cfg.SessionBackend {
	case "redis", "postgres", "memory":
	default:
		log.Printf("WARN: unknown SESSION_BACKEND %q, falling back to memory", Cfg.SessionBackend)
		Cfg.SessionBackend = "memory"
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) GatewayAddr() string {
	return c.GatewayHost + ":" + c.GatewayPort
}

func (c *Config) TokenLeeway() time.Duration {
	return time.Duration(c.TokenLeewaySeconds) * time.Second
}

func (c *Config) RefreshRetryDelay() time.Duration {
	return time.Duration(c.RefreshRetryDelayMS) * time.Millisecond
}

func (c *Config) OnboardingSettleDelay() time.Duration {
	return time.Duration(c.OnboardingSettleMS) * time.Millisecond
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
