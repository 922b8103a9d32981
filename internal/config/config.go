package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string // operational store (Postgres)
	ErpDatabaseURL string // ERP customer master (Postgres)

	PartnerBaseURL  string // customer registration endpoint base
	PartnerAuthURL  string // login endpoint base
	PartnerLogin    string
	PartnerPassword string

	TokenRefresh    time.Duration // partner bearer refresh cadence
	ConfigPoll      time.Duration // config watcher cadence
	ErpRefresh      time.Duration // ERP session reinit + consolidation sweep cadence
	ShutdownTimeout time.Duration

	MaxConcurrent int // bounded worker pool size per tick

	AppEnv   string
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	erpURL := os.Getenv("ERP_DATABASE_URL")
	if erpURL == "" {
		return nil, fmt.Errorf("ERP_DATABASE_URL is required")
	}

	partnerBase := os.Getenv("PARTNER_BASE_URL")
	if partnerBase == "" {
		return nil, fmt.Errorf("PARTNER_BASE_URL is required")
	}

	authBase := os.Getenv("PARTNER_AUTH_URL")
	if authBase == "" {
		authBase = partnerBase
	}

	login := os.Getenv("PARTNER_LOGIN")
	password := os.Getenv("PARTNER_PASSWORD")
	if login == "" || password == "" {
		fmt.Println("Warning: PARTNER_LOGIN or PARTNER_PASSWORD not set, partner submissions will be rejected")
	}

	erpRefreshMin := intEnv("ERP_REFRESH_MINUTES", 30)
	shutdownSec := intEnv("SHUTDOWN_TIMEOUT", 30)
	maxConcurrent := intEnv("MAX_CONCURRENT_SYNCS", 4)

	return &Config{
		DatabaseURL:     dbURL,
		ErpDatabaseURL:  erpURL,
		PartnerBaseURL:  partnerBase,
		PartnerAuthURL:  authBase,
		PartnerLogin:    login,
		PartnerPassword: password,
		TokenRefresh:    30 * time.Minute,
		ConfigPoll:      5 * time.Second,
		ErpRefresh:      time.Duration(erpRefreshMin) * time.Minute,
		ShutdownTimeout: time.Duration(shutdownSec) * time.Second,
		MaxConcurrent:   maxConcurrent,
		AppEnv:          envOr("APP_ENV", "production"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
	}, nil
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		fmt.Printf("Warning: invalid %s=%q, using %d\n", key, raw, fallback)
		return fallback
	}
	return n
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
