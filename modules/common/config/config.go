package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendGeminiAPI = "gemini"
	BackendVertexAI  = "vertex"
)

// Config - all settings loaded from the environment
type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	// Gemini
	GeminiBackend    string
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiImageModel string

	// Vertex AI (GEMINI_BACKEND=vertex)
	VertexAIProject         string
	VertexAILocation        string
	VertexAICredentialsJSON string
	VertexAICredentialsPath string

	// Redis (guest quota, optional)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Guest quota
	MaxGuestGenerations int
	GuestLimitTTL       time.Duration

	// Overlay / export
	BrandName        string
	BrandAccentColor string
	OverlayFontPath  string

	RequestTimeout time.Duration
	WorkspaceIdle  time.Duration
}

// LoadConfig - read .env (when present) and the process environment
func LoadConfig() (*Config, error) {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8080"),

		GeminiBackend:    strings.ToLower(getEnv("GEMINI_BACKEND", BackendGeminiAPI)),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-3-flash-preview"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),

		VertexAIProject:         getEnv("VERTEXAI_PROJECT", ""),
		VertexAILocation:        getEnv("VERTEXAI_LOCATION", "us-central1"),
		VertexAICredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexAICredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		MaxGuestGenerations: getEnvInt("MAX_GUEST_GENERATIONS", 30),
		GuestLimitTTL:       time.Duration(getEnvInt("GUEST_LIMIT_TTL_HOURS", 24)) * time.Hour,

		BrandName:        getEnv("BRAND_NAME", "admachine"),
		BrandAccentColor: getEnv("BRAND_ACCENT_COLOR", "#0071e3"),
		OverlayFontPath:  getEnv("OVERLAY_FONT_PATH", ""),

		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		WorkspaceIdle:  time.Duration(getEnvInt("WORKSPACE_IDLE_MINUTES", 120)) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - required settings per backend
func (c *Config) validate() error {
	switch c.GeminiBackend {
	case BackendGeminiAPI:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case BackendVertexAI:
		if c.VertexAIProject == "" {
			return fmt.Errorf("VERTEXAI_PROJECT is required when GEMINI_BACKEND=vertex")
		}
	default:
		return fmt.Errorf("unsupported GEMINI_BACKEND: %s", c.GeminiBackend)
	}
	if c.BrandName == "" {
		return fmt.Errorf("BRAND_NAME must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// RedisEnabled - quota storage is optional
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// GetRedisAddr - host:port
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
