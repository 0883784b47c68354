// Package config loads the service configuration from environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Environment is the deployment stage the process runs in.
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

const (
	mb = 1024 * 1024

	defaultEncodings = "utf-8,cp1252,latin-1"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxUploadSize     int64 // Maximum multipart upload size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	DataDir                 string
	TrialsFile              string
	GeneDiseaseFile         string
	OrphanDrugsFile         string
	ReactorFile             string
	OrphanDrugsURL          string
	ExclusionCategoriesFile string
	InputEncodings          []string
	ReloadIntervalMinutes   int
	PatternCacheSize        int
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               Environment(strings.ToLower(getEnvWithDefault("ENV", string(EnvDevelopment)))),
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 100*mb),
		MaxUploadSize:     getInt64EnvWithDefault("MAX_UPLOAD_SIZE", 50*mb),
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1*mb),

		DataDir:                 getEnvWithDefault("DATA_DIR", "."),
		TrialsFile:              getEnvWithDefault("TRIALS_FILE", "clinical_trials.tsv"),
		GeneDiseaseFile:         getEnvWithDefault("GENE_DISEASE_FILE", "gene_disease.txt"),
		OrphanDrugsFile:         getEnvWithDefault("ORPHAN_DRUGS_FILE", "orphan_drugs.txt"),
		ReactorFile:             getEnvWithDefault("REACTOR_FILE", "reactor_matches.csv"),
		OrphanDrugsURL:          os.Getenv("ORPHAN_DRUGS_URL"),
		ExclusionCategoriesFile: os.Getenv("EXCLUSION_CATEGORIES_FILE"),
		InputEncodings:          splitList(getEnvWithDefault("INPUT_ENCODINGS", defaultEncodings)),
		ReloadIntervalMinutes:   getIntEnvWithDefault("RELOAD_INTERVAL_MINUTES", 10),
		PatternCacheSize:        getIntEnvWithDefault("PATTERN_CACHE_SIZE", 4096),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in prod.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, c.Port)
}

func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxUploadSize, 1*mb, 500*mb); err != nil {
		return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, 4*1024, 100*mb); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateRange(cfg.LogRetentionWeeks, 1, 52); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxLogFileSize, 1*mb, 1024*mb); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateDataDir(cfg.DataDir); err != nil {
		return fmt.Errorf("invalid DATA_DIR: %w", err)
	}

	if err := validateSourceURL(cfg.OrphanDrugsURL); err != nil {
		return fmt.Errorf("invalid ORPHAN_DRUGS_URL: %w", err)
	}

	if len(cfg.InputEncodings) == 0 {
		return fmt.Errorf("invalid INPUT_ENCODINGS: at least one encoding is required")
	}

	if err := validateRange(cfg.ReloadIntervalMinutes, 1, 24*60); err != nil {
		return fmt.Errorf("invalid RELOAD_INTERVAL_MINUTES: %w", err)
	}

	if err := validateRange(cfg.PatternCacheSize, 16, 1_000_000); err != nil {
		return fmt.Errorf("invalid PATTERN_CACHE_SIZE: %w", err)
	}

	return nil
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress accepts loopback and private addresses only; the service
// handles patient data and is meant to sit behind a proxy.
func validateAddress(address string) error {
	if address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, use a loopback or private address", address)
	}

	return nil
}

func validateEnv(env Environment) error {
	valid := []Environment{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}
	if !slices.Contains(valid, env) {
		return fmt.Errorf("ENV must be one of: %v, got: %s", valid, env)
	}
	return nil
}

func validateLogLevel(logLevel string) error {
	valid := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(valid, logLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", valid, logLevel)
	}
	return nil
}

func validateSizeLimit(size, minSize, maxSize int64) error {
	if size < minSize {
		return fmt.Errorf("must be at least %d bytes, got: %d", minSize, size)
	}
	if size > maxSize {
		return fmt.Errorf("must be at most %d bytes, got: %d", maxSize, size)
	}
	return nil
}

func validateRange(value, minValue, maxValue int) error {
	if value < minValue || value > maxValue {
		return fmt.Errorf("must be between %d and %d, got: %d", minValue, maxValue, value)
	}
	return nil
}

func validateDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func validateSourceURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvVars returns every environment variable the service reads.
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_UPLOAD_SIZE",
		"MAX_HEADER_SIZE",
		"DATA_DIR",
		"TRIALS_FILE",
		"GENE_DISEASE_FILE",
		"ORPHAN_DRUGS_FILE",
		"REACTOR_FILE",
		"ORPHAN_DRUGS_URL",
		"EXCLUSION_CATEGORIES_FILE",
		"INPUT_ENCODINGS",
		"RELOAD_INTERVAL_MINUTES",
		"PATTERN_CACHE_SIZE",
	}
}
