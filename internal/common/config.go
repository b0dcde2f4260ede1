package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warraq-app/warraq/constants"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Convert ConvertConfig
	Remote  RemoteConfig
	Auth    AuthConfig
	History HistoryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ConvertConfig holds the per-job conversion defaults
type ConvertConfig struct {
	DPI           int
	Concurrency   int
	Formats       []string
	PageSeparator string
}

// RemoteConfig holds settings for the remote conversion service
type RemoteConfig struct {
	APIBaseURL    string
	UploadBaseURL string
	Timeout       time.Duration
	MaxRetries    int
}

// AuthConfig holds OAuth client settings
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenCache   string // empty means <user cache dir>/warraq/token.json
	CallbackAddr string
	AccessToken  string // static token, bypasses OAuth (mainly for tests/CI)
}

// HistoryConfig holds the job history store settings
type HistoryConfig struct {
	Path string // empty disables history
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("WARRAQ_ADDR", ":8090"),
			ShutdownTimeout: getEnvAsDuration("WARRAQ_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Convert: ConvertConfig{
			DPI:           constants.ClampDPI(getEnvAsInt("WARRAQ_DPI", constants.DefaultDPI)),
			Concurrency:   constants.ClampConcurrency(getEnvAsInt("WARRAQ_CONCURRENCY", constants.DefaultConcurrency)),
			Formats:       splitCSV(getEnv("WARRAQ_FORMATS", "txt")),
			PageSeparator: getEnv("WARRAQ_PAGE_SEPARATOR", constants.DefaultPageSeparator),
		},
		Remote: RemoteConfig{
			APIBaseURL:    getEnv("WARRAQ_DRIVE_API_URL", "https://www.googleapis.com/drive/v3"),
			UploadBaseURL: getEnv("WARRAQ_DRIVE_UPLOAD_URL", "https://www.googleapis.com/upload/drive/v3"),
			Timeout:       getEnvAsDuration("WARRAQ_REMOTE_TIMEOUT", 90*time.Second),
			MaxRetries:    getEnvAsInt("WARRAQ_REMOTE_MAX_RETRIES", 5),
		},
		Auth: AuthConfig{
			ClientID:     getEnv("WARRAQ_OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("WARRAQ_OAUTH_CLIENT_SECRET", ""),
			TokenCache:   getEnv("WARRAQ_TOKEN_CACHE", ""),
			CallbackAddr: getEnv("WARRAQ_OAUTH_CALLBACK_ADDR", "127.0.0.1:3027"),
			AccessToken:  getEnv("WARRAQ_ACCESS_TOKEN", ""),
		},
		History: HistoryConfig{
			Path: getEnv("WARRAQ_HISTORY_DB", ""),
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

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "WARRAQ_ADDR is required", ErrInvalidInput)
	}
	if len(c.Convert.Formats) == 0 {
		return NewAppError("CONFIG_ERROR", "WARRAQ_FORMATS must name at least one format", ErrInvalidInput)
	}
	if c.Auth.AccessToken == "" && c.Auth.ClientID == "" {
		return NewAppError("CONFIG_ERROR", "either WARRAQ_ACCESS_TOKEN or WARRAQ_OAUTH_CLIENT_ID is required", ErrInvalidInput)
	}
	return nil
}
