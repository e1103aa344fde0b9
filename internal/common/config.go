package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Remote RemoteConfig
	Cache  CacheConfig
	Native NativeConfig
	Store  StoreConfig
	Tasks  TasksConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// RemoteConfig holds the remote document-intelligence service configuration
type RemoteConfig struct {
	APIKey      string
	BaseURL     string
	Language    string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MinInterval time.Duration
	Converter   string // preferred document-to-PDF converter binary; empty tries known ones
}

// CacheConfig holds the on-disk call cache configuration
type CacheConfig struct {
	Dir        string
	TTL        time.Duration
	MaxEntries int
	MemEntries int
}

// NativeConfig holds native automation bridge configuration
type NativeConfig struct {
	Bridge string // automation bridge binary name or absolute path
}

// StoreConfig holds the embedded job store configuration
type StoreConfig struct {
	Path string
}

// TasksConfig holds worker pool configuration
type TasksConfig struct {
	Workers int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8000"),
		},
		Remote: RemoteConfig{
			APIKey:      getEnv("OCR_API_KEY", ""),
			BaseURL:     getEnv("OCR_BASE_URL", "https://api.mistral.ai/v1/ocr"),
			Language:    getEnv("OCR_LANGUAGE", "ko"),
			Timeout:     getEnvAsDuration("OCR_TIMEOUT", 180*time.Second),
			MaxAttempts: getEnvAsInt("OCR_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("OCR_RETRY_BASE_DELAY", 2*time.Second),
			MinInterval: getEnvAsDuration("OCR_MIN_INTERVAL", time.Second),
			Converter:   getEnv("PDF_CONVERTER", ""),
		},
		Cache: CacheConfig{
			Dir:        getEnv("CACHE_DIR", "./cache"),
			TTL:        getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
			MemEntries: getEnvAsInt("CACHE_MEM_ENTRIES", 128),
		},
		Native: NativeConfig{
			Bridge: getEnv("AUTOMATION_BRIDGE", "hwpauto"),
		},
		Store: StoreConfig{
			Path: getEnv("JOB_STORE_PATH", "./extract.db"),
		},
		Tasks: TasksConfig{
			Workers: getEnvAsInt("TASK_WORKERS", 4),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Remote.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "OCR_MAX_ATTEMPTS must be >= 1", ErrInvalidInput)
	}
	if c.Cache.MaxEntries < 1 {
		return NewAppError("CONFIG_ERROR", "CACHE_MAX_ENTRIES must be >= 1", ErrInvalidInput)
	}
	return nil
}
