// Package config handles gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all gateway configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database (optional, in-memory stores if not set)
	DatabaseURL string

	// Identity: the domain this gateway serves. Federated addresses whose
	// domain matches are local to this gateway.
	Domain string

	// Ledger network accounts
	ColdWallet string // custody account receiving bridged funds
	HotWallet  string // operational account used as pathfinding source

	// Pathfinding backend (ripple-rest style API)
	PathfindURL string

	// Peer gateway HTTP client
	PeerScheme      string // "https" in production; "http" for local testing
	PeerTimeout     time.Duration
	PeerInsecureTLS bool // skip TLS verification for peer gateways (dev only)
}

// Defaults
const (
	DefaultPort        = "8080"
	DefaultEnv         = "development"
	DefaultLogLevel    = "info"
	DefaultPeerScheme  = "https"
	DefaultPeerTimeout = 30 * time.Second
)

// Load reads configuration from environment variables. A .env file is loaded
// first if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Domain:          os.Getenv("DOMAIN"),
		ColdWallet:      os.Getenv("COLD_WALLET"),
		HotWallet:       os.Getenv("HOT_WALLET"),
		PathfindURL:     os.Getenv("PATHFIND_URL"),
		PeerScheme:      getEnv("PEER_SCHEME", DefaultPeerScheme),
		PeerTimeout:     getEnvDuration("PEER_TIMEOUT_SECS", DefaultPeerTimeout),
		PeerInsecureTLS: getEnvBool("PEER_INSECURE_TLS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("DOMAIN is required")
	}
	if c.ColdWallet == "" {
		return fmt.Errorf("COLD_WALLET is required")
	}
	if c.HotWallet == "" {
		return fmt.Errorf("HOT_WALLET is required")
	}
	if c.PathfindURL == "" {
		return fmt.Errorf("PATHFIND_URL is required")
	}
	if c.PeerScheme != "http" && c.PeerScheme != "https" {
		return fmt.Errorf("PEER_SCHEME must be http or https")
	}
	if c.PeerInsecureTLS && c.Env == "production" {
		return fmt.Errorf("PEER_INSECURE_TLS is not allowed in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
