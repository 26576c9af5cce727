package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string
	StoreBackend  string
	DBPath        string
	PostgresDSN   string
	ChecklistPath string

	PhotoBackend string
	PhotoPath    string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool

	NATSURL     string
	NATSSubject string

	LogLevel  string
	LogFormat string
	LogFile   string

	SaveQueueSize     int
	SaveRetryAttempts int
}

// Load reads the environment. A .env file in the working directory, or the
// file named by SITECHECK_ENV_FILE, is applied first without overriding
// variables that are already set.
func Load() (*Config, error) {
	if err := loadEnvFile(os.Getenv("SITECHECK_ENV_FILE")); err != nil {
		return nil, err
	}

	queueSize, err := getEnvInt("SAVE_QUEUE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	retries, err := getEnvInt("SAVE_RETRY_ATTEMPTS", 4)
	if err != nil {
		return nil, err
	}
	pathStyle, err := getEnvBool("S3_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		StoreBackend:      getEnv("STORE_BACKEND", "sqlite"),
		DBPath:            getEnv("DB_PATH", "/data/sitecheck.db"),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		ChecklistPath:     getEnv("CHECKLIST_PATH", ""),
		PhotoBackend:      getEnv("PHOTO_BACKEND", "local"),
		PhotoPath:         getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3PathStyle:       pathStyle,
		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubject:       getEnv("NATS_SUBJECT", "sitecheck.defects.capture"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", ""),
		SaveQueueSize:     queueSize,
		SaveRetryAttempts: retries,
	}, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return b, nil
}
