// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default provider endpoints. Both can be overridden via environment for
// testing against stubs.
const (
	defaultCatalogAPIURL   = "https://api.beezie.io/dropItems"
	defaultAppraisalAPIURL = "https://alt-platform-server.production.internal.onlyalt.com/graphql"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the cards database (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// ThrottleLimit caps concurrent in-flight HTTP requests.
	ThrottleLimit int

	CatalogAPIURL      string
	AppraisalAPIURL    string
	AppraisalAuthToken string

	// SyncCategories is the fixed list of catalog categories a full sync
	// iterates, in order.
	SyncCategories []string

	WalletAddress         string
	WalletInitialBalance  float64
	PlaceOrdersDuringSync bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:               absDataDir,
		Port:                  getEnvAsInt("PORT", 8080),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ThrottleLimit:         getEnvAsInt("THROTTLE_LIMIT", 100),
		CatalogAPIURL:         getEnv("CATALOG_API_URL", defaultCatalogAPIURL),
		AppraisalAPIURL:       getEnv("APPRAISAL_API_URL", defaultAppraisalAPIURL),
		AppraisalAuthToken:    getEnv("APPRAISAL_AUTH_TOKEN", ""),
		SyncCategories:        getEnvAsList("SYNC_CATEGORIES", []string{"1"}),
		WalletAddress:         getEnv("WALLET_ADDRESS", "0x0000000000000000000000000000000000000001"),
		WalletInitialBalance:  getEnvAsFloat("WALLET_INITIAL_BALANCE", 1000),
		PlaceOrdersDuringSync: getEnvAsBool("PLACE_ORDERS_DURING_SYNC", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.ThrottleLimit < 1 {
		return fmt.Errorf("throttle limit must be positive: %d", c.ThrottleLimit)
	}

	if len(c.SyncCategories) == 0 {
		return fmt.Errorf("at least one sync category is required")
	}

	if c.WalletAddress == "" {
		return fmt.Errorf("wallet address is required")
	}

	if c.WalletInitialBalance < 0 {
		return fmt.Errorf("wallet initial balance cannot be negative: %f", c.WalletInitialBalance)
	}

	// Note: appraisal auth token optional - enrichment degrades to "nothing
	// resolved" without it, which the pipeline already tolerates.

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
