package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	Store             string // "mongo" | "memory"
	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	RedisAddr string

	RabbitURL         string
	RabbitExchange    string
	RabbitQueue       string
	RabbitBindKey     string
	RabbitConcurrency int

	JWTSecret        string
	AuthJWKSURL      string
	JWKSCacheSeconds int

	AllowExpiredOnAllCategories bool
	StrictUnexpire              bool
	HourlyLimit                 int
	BurstLimit                  int
	BurstWindow                 time.Duration
	SearchPerMin                int

	LogProduction  bool
	DDTraceEnabled bool
}

func Load() Config {
	return Config{
		Port:              getenv("APP_PORT", "8080"),
		Store:             getenv("STORE", "mongo"),
		MongoURI:          getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           getenv("MONGO_DB", "forum"),
		MongoTransactions: getbool("MONGO_TRANSACTIONS", true),
		RedisAddr:         getenv("REDIS_ADDR", ""),

		RabbitURL:         getenv("RABBIT_URL", ""),
		RabbitExchange:    getenv("RABBIT_EXCHANGE", "forum.events"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "notifyq"),
		RabbitBindKey:     getenv("RABBIT_BIND_KEY", "notification.created"),
		RabbitConcurrency: atoi(getenv("RABBIT_CONCURRENCY", "4")),

		JWTSecret:        getenv("JWT_SECRET", "default_secret_key"),
		AuthJWKSURL:      getenv("AUTH_JWKS_URL", ""),
		JWKSCacheSeconds: atoi(getenv("JWKS_CACHE_SECONDS", "300")),

		AllowExpiredOnAllCategories: getbool("ALLOW_EXPIRED_ON_ALL_CATEGORIES", false),
		StrictUnexpire:              getbool("EXPIRED_STRICT_UNEXPIRE", false),
		HourlyLimit:                 atoi(getenv("EXPIRE_HOURLY_LIMIT", "20")),
		BurstLimit:                  atoi(getenv("EXPIRE_BURST_LIMIT", "4")),
		BurstWindow:                 time.Duration(atoi(getenv("EXPIRE_BURST_WINDOW_SECONDS", "30"))) * time.Second,
		SearchPerMin:                atoi(getenv("SEARCH_RATE_LIMIT_PER_MIN", "60")),

		LogProduction:  getbool("LOG_PRODUCTION", false),
		DDTraceEnabled: getbool("DD_TRACE_ENABLED", false),
	}
}

func atoi(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return 0
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
