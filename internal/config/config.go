package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Storage settings
	StorageRoot  string
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Upload settings
	AllowedExtensions []string
	MaxUploadSize     int64

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Search settings
	SearchDefaultLimit int
	SearchMaxLimit     int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "8080"),
		StorageRoot:  getEnv("STORAGE_ROOT", "./data/case-files"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/case_organizer.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}

	exts := getEnv("ALLOWED_EXTENSIONS", "pdf,doc,docx,txt,rtf")
	for _, ext := range strings.Split(exts, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			cfg.AllowedExtensions = append(cfg.AllowedExtensions, ext)
		}
	}

	var err error
	cfg.MaxUploadSize, err = strconv.ParseInt(getEnv("MAX_UPLOAD_SIZE", "33554432"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}

	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	cfg.SearchDefaultLimit, err = strconv.Atoi(getEnv("SEARCH_DEFAULT_LIMIT", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_DEFAULT_LIMIT: %w", err)
	}

	cfg.SearchMaxLimit, err = strconv.Atoi(getEnv("SEARCH_MAX_LIMIT", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_MAX_LIMIT: %w", err)
	}

	return cfg, nil
}

// AllowedExtension reports whether the given filename extension
// (without the dot) is in the upload allow-list
func (c *Config) AllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
