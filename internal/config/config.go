// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default HMRC endpoints and protocol settings. The sandbox base URL is the
// safe default; production deployments must set HMRC_BASE_URL explicitly.
const (
	DefaultHMRCBaseURL    = "https://test-api.service.hmrc.gov.uk"
	DefaultHMRCAPIVersion = "5.0"
	DefaultHMRCTimeout    = 30 * time.Second
	DefaultListenAddr     = ":8090"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL      string
	ListenAddr       string
	LogLevel         string
	HMRCBaseURL      string
	HMRCClientID     string
	HMRCClientSecret string
	HMRCRedirectURI  string
	HMRCAPIVersion   string
	HMRCTimeout      time.Duration
	VendorProduct    string
	VendorVersion    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		HMRCBaseURL:      strings.TrimRight(os.Getenv("HMRC_BASE_URL"), "/"),
		HMRCClientID:     os.Getenv("HMRC_CLIENT_ID"),
		HMRCClientSecret: os.Getenv("HMRC_CLIENT_SECRET"),
		HMRCRedirectURI:  os.Getenv("HMRC_REDIRECT_URI"),
		HMRCAPIVersion:   os.Getenv("HMRC_API_VERSION"),
		VendorProduct:    os.Getenv("VENDOR_PRODUCT_NAME"),
		VendorVersion:    os.Getenv("VENDOR_PRODUCT_VERSION"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.HMRCBaseURL == "" {
		cfg.HMRCBaseURL = DefaultHMRCBaseURL
	}
	if cfg.HMRCAPIVersion == "" {
		cfg.HMRCAPIVersion = DefaultHMRCAPIVersion
	}
	if cfg.VendorProduct == "" {
		cfg.VendorProduct = "taxquarter"
	}
	if cfg.VendorVersion == "" {
		cfg.VendorVersion = "dev"
	}

	cfg.HMRCTimeout = DefaultHMRCTimeout
	if secsStr := os.Getenv("HMRC_TIMEOUT_SECONDS"); secsStr != "" {
		if secs, err := strconv.Atoi(secsStr); err == nil && secs > 0 {
			cfg.HMRCTimeout = time.Duration(secs) * time.Second
		}
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.HMRCClientID == "" {
		errs = append(errs, "HMRC_CLIENT_ID is required")
	}

	if c.HMRCClientSecret == "" {
		errs = append(errs, "HMRC_CLIENT_SECRET is required")
	}

	if c.HMRCRedirectURI == "" {
		errs = append(errs, "HMRC_REDIRECT_URI is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
