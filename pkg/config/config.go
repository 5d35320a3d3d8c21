package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL     string
	ChannelURL     string
	AuthToken      string
	LocalUserID    int64
	ShopID         int64
	Role           string // "buyer" or "seller"
	Environment    string
	TypingDebounce time.Duration
	TypingTTL      time.Duration
	ViewportWidth  int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
		ChannelURL:     getEnv("CHANNEL_URL", "ws://localhost:8080/v1/channel"),
		AuthToken:      getEnv("AUTH_TOKEN", ""),
		LocalUserID:    getEnvAsInt64("LOCAL_USER_ID", 0),
		ShopID:         getEnvAsInt64("SHOP_ID", 0),
		Role:           getEnv("CHAT_ROLE", "buyer"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		TypingDebounce: getEnvAsDuration("TYPING_DEBOUNCE_MS", 2000),
		TypingTTL:      getEnvAsDuration("TYPING_TTL_MS", 6000),
		ViewportWidth:  int(getEnvAsInt64("VIEWPORT_WIDTH", 1280)),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultMillis int64) time.Duration {
	return time.Duration(getEnvAsInt64(key, defaultMillis)) * time.Millisecond
}
