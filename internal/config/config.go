package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendMongo  = "mongo"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Storage
	StoreBackend string
	MongoURI     string
	MongoDbName  string

	// Redis (cache and background tasks). Empty RedisAddr disables both.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Registry
	RegistryAddress      string
	TokenDecimals        int32
	ListingCacheTTL      time.Duration
	CustodyAuditInterval time.Duration
	SandboxSeedFile      string // optional YAML seed for the in-memory ledgers

	// Rate Limiting
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.StoreBackend = getEnv("STORE_BACKEND", StoreBackendMemory)
	switch cfg.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendMongo:
		cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q (want %q or %q)", cfg.StoreBackend, StoreBackendMemory, StoreBackendMongo)
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "marketplace")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.RegistryAddress = getEnv("REGISTRY_ADDRESS", "0x00000000000000000000000000000000006d6b74")
	if models.NewAddress(cfg.RegistryAddress).IsZero() {
		return nil, fmt.Errorf("invalid REGISTRY_ADDRESS: %q is empty or the zero address", cfg.RegistryAddress)
	}
	cfg.SandboxSeedFile = getEnv("SANDBOX_SEED_FILE", "")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	decimals, err := strconv.ParseInt(getEnv("TOKEN_DECIMALS", "18"), 10, 32)
	if err != nil || decimals < 0 || decimals > 77 {
		return nil, fmt.Errorf("invalid TOKEN_DECIMALS: %q", getEnv("TOKEN_DECIMALS", "18"))
	}
	cfg.TokenDecimals = int32(decimals)

	cacheTTLSeconds, err := strconv.ParseInt(getEnv("LISTING_CACHE_TTL_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTING_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.ListingCacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	auditSeconds, err := strconv.ParseInt(getEnv("CUSTODY_AUDIT_INTERVAL_SECONDS", "300"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CUSTODY_AUDIT_INTERVAL_SECONDS: %w", err)
	}
	cfg.CustodyAuditInterval = time.Duration(auditSeconds) * time.Second

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
