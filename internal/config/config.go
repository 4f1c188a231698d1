package config

import (
	"os"
)

type Config struct {
	DatabaseURL string
	OGDAPIKey   string
	OGDBaseURL  string
	Port        string
	Environment string
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:root@tcp(127.0.0.1:3306)/mandi_tracker?charset=utf8mb4&parseTime=True&loc=Local"

	// The upstream key historically shipped under two names
	apiKey := getEnv("OGD_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("AGMARKNET_API_KEY", "")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		OGDAPIKey:   apiKey,
		OGDBaseURL:  getEnv("OGD_BASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
