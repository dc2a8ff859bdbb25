package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress    string
	ContentCacheTTL time.Duration

	// JWT configuration
	JWTSecret string

	// internal secret used for communication between server
	InternalSecret string

	// Background revision snapshots
	WorkerPoolSize int

	LogLevel string
	LogFile  string

	FrontendAddress string
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from .env (if any) and environment variables
func LoadConfig(log zerolog.Logger) Config {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("Error loading .env file")
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32)
		log.Warn().Msg("JWT_SECRET not set, generated a random secret")
	}

	AppConfig = Config{
		ServerPort:      getEnv("PORT", "8080"),
		Environment:     getEnv("ENV", "development"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "page_builder"),
		RedisAddress:    getEnv("REDIS_ADDRESS", "localhost:6379"),
		ContentCacheTTL: getDuration("CONTENT_CACHE_TTL", 24*time.Hour),
		JWTSecret:       jwtSecret,
		InternalSecret:  getEnv("INTERNAL_SECRET", "page-builder-internal-secret"),
		WorkerPoolSize:  getInt("WORKER_POOL_SIZE", 4),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		FrontendAddress: getEnv("FRONTEND_ADDRESS", "https://production-frontend.com"),
	}
	return AppConfig
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// generateRandomSecret generates a random hex secret of length bytes
func generateRandomSecret(length int) string {
	secret := make([]byte, length)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return hex.EncodeToString(secret)
}
