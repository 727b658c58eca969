package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (user refresh channels)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Market backend configuration
	MarketBaseURL           string
	MarketPartnerID         string
	MarketClientID          string
	MarketClientKey         string
	MarketHMACKey           string
	MarketWebhookSecretHash string
	MarketPNSubKey          string
	MarketPNSubSecret       string
	MarketPNUUID            string
	MarketPNChannel         string

	// Redemption configuration
	InflightTTL time.Duration

	// Rate limiting
	RedemptionRateLimit  int
	RedemptionRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Market backend
		MarketBaseURL:           getEnv("MARKET_BASE_URL", "http://localhost:9000"),
		MarketPartnerID:         getEnv("MARKET_PARTNER_ID", ""),
		MarketClientID:          getEnv("MARKET_CLIENT_ID", ""),
		MarketClientKey:         getEnv("MARKET_CLIENT_KEY", ""),
		MarketHMACKey:           getEnv("MARKET_HMAC_KEY", ""),
		MarketWebhookSecretHash: getEnv("MARKET_WEBHOOK_SECRET_HASH", ""),
		MarketPNSubKey:          getEnv("MARKET_PN_SUBKEY", ""),
		MarketPNSubSecret:       getEnv("MARKET_PN_SUBSECRET", ""),
		MarketPNUUID:            getEnv("MARKET_PN_UUID", "redemption-system"),
		MarketPNChannel:         getEnv("MARKET_PN_CHANNEL", "market-resolutions"),

		// Redemption
		InflightTTL: getEnvAsDuration("INFLIGHT_TTL", "30s"),

		// Rate limiting
		RedemptionRateLimit:  getEnvAsInt("REDEMPTION_RATE_LIMIT", 10),
		RedemptionRateWindow: getEnvAsDuration("REDEMPTION_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
