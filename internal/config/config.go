package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	LocalDBPath string

	SurrealEndpoint  string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealAccess    string

	AIKey     string
	AIBaseURL string
	AIModel   string

	BaseURL  string
	LogLevel string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	return &Config{
		LocalDBPath: getEnv("PLANBOARD_DB_PATH", "planboard.db"),

		SurrealEndpoint:  getEnv("SURREAL_ENDPOINT", "ws://localhost:8000/rpc"),
		SurrealNamespace: getEnv("SURREAL_NAMESPACE", "planboard"),
		SurrealDatabase:  getEnv("SURREAL_DATABASE", "planboard"),
		SurrealAccess:    getEnv("SURREAL_ACCESS", "account"),

		AIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AIBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		AIModel:   getEnv("ANTHROPIC_MODEL", ""),

		BaseURL:  getEnv("PLANBOARD_BASE_URL", "http://localhost:3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
