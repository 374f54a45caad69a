package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	Env        string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisURL   string
	JWTSecret  string

	// Translation backend
	GeminiAPIKey     string
	GeminiAPIURL     string
	TranslateTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "kaiwa"),
		DBPassword: getEnv("DB_PASSWORD", "kaiwa_dev_password"),
		DBName:     getEnv("DB_NAME", "kaiwa"),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiAPIURL:     getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"),
		TranslateTimeout: getDuration("TRANSLATE_TIMEOUT_SECONDS", 15*time.Second),
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
