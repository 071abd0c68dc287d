package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint      string
	OTLPProtocol      string
	OTLPSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	AI        AIConfig
	Billing   BillingConfig
	RateLimit RateLimitConfig

	Logger LoggerConfig
}

// AIConfig configures the model provider and orchestration bounds.
type AIConfig struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	CheapModel       string
	StrongModel      string
	MaxToolIters     int
	DefaultMaxTokens int
	RequestTimeout   time.Duration
}

// BillingConfig configures monthly grants and credit pricing.
type BillingConfig struct {
	FreeMonthlyCredits float64
	ProMonthlyCredits  float64
	TeamSeatCredits    float64
	MarkupMultiplier   float64
}

// RateLimitConfig configures the per-user AI run limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AIRunRate     float64
	AIRunBurst    int
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "appdraft"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		OTLPEndpoint:      getenv("OTLP_ENDPOINT", ""),
		OTLPProtocol:      getenv("OTLP_PROTOCOL", "grpc"),
		OTLPSamplingRatio: getenvFloat("OTLP_SAMPLING_RATIO", 1.0),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "appdraft"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 4),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 32),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		AI: AIConfig{
			AnthropicAPIKey:  strings.TrimSpace(getenv("ANTHROPIC_API_KEY", "")),
			AnthropicBaseURL: getenv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			CheapModel:       getenv("AI_CHEAP_MODEL", "claude-3-5-haiku-20241022"),
			StrongModel:      getenv("AI_STRONG_MODEL", "claude-sonnet-4-5"),
			MaxToolIters:     getenvInt("AI_MAX_TOOL_ITERS", 5),
			DefaultMaxTokens: getenvInt("AI_MAX_TOKENS", 4096),
			RequestTimeout:   time.Duration(getenvInt("AI_REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Billing: BillingConfig{
			FreeMonthlyCredits: getenvFloat("FREE_MONTHLY_CREDITS", 1.0),
			ProMonthlyCredits:  getenvFloat("PRO_MONTHLY_CREDITS", 10.0),
			TeamSeatCredits:    getenvFloat("TEAM_SEAT_CREDITS", 15.0),
			MarkupMultiplier:   getenvFloat("AI_CREDIT_MARKUP", 1.20),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			AIRunRate:     getenvFloat("RATE_LIMIT_AI_RUN_RATE", 0.2),
			AIRunBurst:    getenvInt("RATE_LIMIT_AI_RUN_BURST", 5),
		},
		Logger: LoggerConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
