package config

import (
	"os"
	"strconv"
)

type CoordinationServiceConfig struct {
	Port        string
	OrgID       string
	JWTSecret   string
	LedgerCfg   LedgerConfig
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	PayoutCfg   PayoutConfig
}

type LedgerConfig struct {
	GatewayURL        string
	Channel           string
	ApprovalContract  string
	PolicyContract    string
	TemplateContract  string
	ClaimContract     string
	PoolContract      string
	RequestTimeoutSec int
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type PayoutConfig struct {
	WorkerCount        int
	ReconcileSchedule  string
	ExecuteLockTTLSec  int
	EnableExecuteLocks bool
}

func New() *CoordinationServiceConfig {
	return &CoordinationServiceConfig{
		Port:      getEnvOrDefault("PORT", "8086"),
		OrgID:     getEnvOrDefault("ORG_ID", "Org1MSP"),
		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		LedgerCfg: LedgerConfig{
			GatewayURL:        getEnvOrDefault("LEDGER_GATEWAY_URL", "http://localhost:7059"),
			Channel:           getEnvOrDefault("LEDGER_CHANNEL", "insurance-channel"),
			ApprovalContract:  getEnvOrDefault("LEDGER_APPROVAL_CONTRACT", "approval-manager"),
			PolicyContract:    getEnvOrDefault("LEDGER_POLICY_CONTRACT", "policy-cc"),
			TemplateContract:  getEnvOrDefault("LEDGER_TEMPLATE_CONTRACT", "policy-template-cc"),
			ClaimContract:     getEnvOrDefault("LEDGER_CLAIM_CONTRACT", "claim-processor-cc"),
			PoolContract:      getEnvOrDefault("LEDGER_POOL_CONTRACT", "premium-pool-cc"),
			RequestTimeoutSec: getEnvIntOrDefault("LEDGER_REQUEST_TIMEOUT_SEC", 30),
		},
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "coordination"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		PayoutCfg: PayoutConfig{
			WorkerCount:        getEnvIntOrDefault("PAYOUT_WORKER_COUNT", 4),
			ReconcileSchedule:  getEnvOrDefault("PAYOUT_RECONCILE_SCHEDULE", "@every 1h"),
			ExecuteLockTTLSec:  getEnvIntOrDefault("EXECUTE_LOCK_TTL_SEC", 60),
			EnableExecuteLocks: getEnvOrDefault("EXECUTE_LOCKS_ENABLED", "true") == "true",
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
