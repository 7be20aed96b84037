package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	// Object storage (upload credentials)
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	AWSBucket    string
	AWSEndpoint  string // optional, S3-compatible storage
	// Bin lifecycle
	BinRetention  time.Duration
	SweepInterval time.Duration
	// Upload credentials
	CredentialTTL time.Duration
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	defaults := loadDefaults()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  env,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		TablePrefix:  getTablePrefix(env),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey: getEnv("AWS_API_KEY", ""),
		AWSSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AWSBucket:    getEnv("AWS_BUCKET_NAME", ""),
		AWSEndpoint:  getEnv("AWS_ENDPOINT", ""),

		BinRetention:  24 * time.Hour * time.Duration(getEnvInt("BIN_RETENTION_DAYS", defaults.BinRetentionDays)),
		SweepInterval: time.Minute * time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", defaults.SweepIntervalMinutes)),
		CredentialTTL: time.Minute * time.Duration(getEnvInt("UPLOAD_CREDENTIAL_MINUTES", defaults.UploadCredentialMinutes)),

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
