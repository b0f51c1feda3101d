package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Environment string
	LogLevel    string

	// Kafka configuration
	KafkaBrokers  []string
	KafkaGroupID  string
	PaymentTopic  string
	CheckoutTopic string
	ResultTopic   string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresURI string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Ledger configuration
	LedgerRPCURL      string
	LedgerOperatorKey string
	SlotTime          time.Duration

	// Gateway configuration
	StripeKey          string
	GatewayFeeBps      int64
	GatewayFeeFixed    int64
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	// Price feed
	NativeAsset string

	// Fee configuration (basis points)
	PrimaryProtocolFeeBps   int64
	SecondaryProtocolFeeBps int64

	// Settlement cost in native units per purchase kind
	MintCostNative int64
	FillCostNative int64

	// Timeout configuration
	PipelineTimeout time.Duration
	PrecheckTimeout time.Duration
	GatewayTimeout  time.Duration

	// Purchase windows
	PaymentWindow  time.Duration
	CheckoutWindow time.Duration
	MarkerMargin   time.Duration

	// Reservation retry
	ReserveAttempts int
	ReserveDelay    time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Kafka
		KafkaBrokers:  getEnvAsSlice("KAFKA_BROKERS", "localhost:9092"),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "fiat-checkout"),
		PaymentTopic:  getEnv("KAFKA_PAYMENT_TOPIC", "purchase.payment"),
		CheckoutTopic: getEnv("KAFKA_CHECKOUT_TOPIC", "purchase.checkout"),
		ResultTopic:   getEnv("KAFKA_RESULT_TOPIC", "purchase.result"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Postgres
		PostgresURI: getEnv("POSTGRES_URI", "postgres://localhost:5432/fiat_checkout"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Ledger
		LedgerRPCURL:      getEnv("LEDGER_RPC_URL", "http://localhost:8899"),
		LedgerOperatorKey: getEnv("LEDGER_OPERATOR_KEY", ""),
		SlotTime:          getEnvAsDuration("LEDGER_SLOT_TIME", "600ms"),

		// Gateway
		StripeKey:          getEnv("STRIPE_KEY", ""),
		GatewayFeeBps:      getEnvAsInt64("GATEWAY_FEE_BPS", 0),
		GatewayFeeFixed:    getEnvAsInt64("GATEWAY_FEE_FIXED", 0),
		CheckoutSuccessURL: getEnv("CHECKOUT_SUCCESS_URL", "https://example.com/checkout/success"),
		CheckoutCancelURL:  getEnv("CHECKOUT_CANCEL_URL", "https://example.com/checkout/cancel"),

		// Price feed
		NativeAsset: getEnv("NATIVE_ASSET", "solana"),

		// Fees
		PrimaryProtocolFeeBps:   getEnvAsInt64("PRIMARY_PROTOCOL_FEE_BPS", 250),
		SecondaryProtocolFeeBps: getEnvAsInt64("SECONDARY_PROTOCOL_FEE_BPS", 250),

		// Settlement costs
		MintCostNative: getEnvAsInt64("MINT_COST_NATIVE", 7),
		FillCostNative: getEnvAsInt64("FILL_COST_NATIVE", 5),

		// Timeouts
		PipelineTimeout: getEnvAsDuration("PIPELINE_TIMEOUT", "15s"),
		PrecheckTimeout: getEnvAsDuration("PRECHECK_TIMEOUT", "5s"),
		GatewayTimeout:  getEnvAsDuration("GATEWAY_TIMEOUT", "2s"),

		// Purchase windows
		PaymentWindow:  getEnvAsDuration("PAYMENT_WINDOW", "10m"),
		CheckoutWindow: getEnvAsDuration("CHECKOUT_WINDOW", "30m"),
		MarkerMargin:   getEnvAsDuration("MARKER_MARGIN", "1m"),

		// Reservation retry
		ReserveAttempts: getEnvAsInt("RESERVE_ATTEMPTS", 3),
		ReserveDelay:    getEnvAsDuration("RESERVE_DELAY", "500ms"),

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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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

func getEnvAsSlice(key string, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
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
