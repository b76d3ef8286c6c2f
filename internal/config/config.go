package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config конфигурация сервиса
type Config struct {
	ServerPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DataDir       string

	LabelStoreKey       string
	ClassifierConfigKey string

	RandomAnomalyRate float64
	ZScoreThreshold   float64
	MinDetectBatch    int
	ModelTimeout      time.Duration

	SampleLimit int
	HistorySize int
}

// Load загружает конфигурацию из environment, с учетом .env файла
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		DataDir:             getEnv("DATA_DIR", "data"),
		LabelStoreKey:       getEnv("LABEL_STORE_KEY", "process_labels"),
		ClassifierConfigKey: getEnv("CLASSIFIER_CONFIG_KEY", "classifier_config"),
		RandomAnomalyRate:   getEnvAsFloat("RANDOM_ANOMALY_RATE", 0.03),
		ZScoreThreshold:     getEnvAsFloat("ZSCORE_THRESHOLD", 2.0),
		MinDetectBatch:      getEnvAsInt("MIN_DETECT_BATCH", 10),
		ModelTimeout:        time.Duration(getEnvAsInt("MODEL_TIMEOUT_MS", 2000)) * time.Millisecond,
		SampleLimit:         getEnvAsInt("SAMPLE_LIMIT", 100),
		HistorySize:         getEnvAsInt("HISTORY_SIZE", 500),
	}
}

// getEnv получает environment variable или возвращает default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt получает environment variable как int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat получает environment variable как float64
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value float64
	if _, err := fmt.Sscanf(valueStr, "%f", &value); err != nil {
		return defaultValue
	}
	return value
}
