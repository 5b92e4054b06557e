package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	SMTP        SMTPConfig
	Keys        APIKeys
	OCR         OCRConfig
	Transfer    TransferConfig
	Data        DataConfig
	Maintenance MaintenanceConfig
	Worker      WorkerConfig
	Broker      BrokerConfig
	Otel        OtelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	AllowedUsers       []string
	AllowedGroupID     string
}

type DatabaseConfig struct {
	Connection         string
	AvailableDatabases []string
	DefaultDatabase    string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type APIKeys struct {
	GatewayJWTSecret string
}

type OCRConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type TransferConfig struct {
	ActsDir   string
	MaxPhotos int
}

type DataConfig struct {
	Dir     string
	TempDir string
}

type MaintenanceConfig struct {
	BackupDir      string
	MaxBackups     int
	CheckInterval  time.Duration
	BackupInterval time.Duration
	CleanupEvery   time.Duration
	CleanupHours   int
	StopTimeout    time.Duration
}

type WorkerConfig struct {
	PoolSize  int
	QueueSize int
}

type BrokerConfig struct {
	NatsURL  string
	RedisURL string
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	databases := getEnvAsList("AVAILABLE_DATABASES", []string{"ITINVENT"})

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedUsers:       getEnvAsList("ALLOWED_USERS", nil),
			AllowedGroupID:     getEnv("ALLOWED_GROUP_ID", ""),
		},
		Database: DatabaseConfig{
			Connection:         getEnv("DB_CONNECTION_STRING", ""),
			AvailableDatabases: databases,
			DefaultDatabase:    getEnv("DEFAULT_DATABASE", databases[0]),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Inventory Assistant"),
		},
		Keys: APIKeys{
			GatewayJWTSecret: getEnv("GATEWAY_JWT_SECRET", ""),
		},
		OCR: OCRConfig{
			BaseURL: getEnv("OCR_BASE_URL", "http://localhost:11434"),
			Model:   getEnv("OCR_MODEL", "llava"),
			Timeout: time.Duration(getEnvAsInt("OCR_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Transfer: TransferConfig{
			ActsDir:   getEnv("TRANSFER_ACTS_DIR", "transfer_acts"),
			MaxPhotos: getEnvAsInt("MAX_TRANSFER_PHOTOS", 10),
		},
		Data: DataConfig{
			Dir:     getEnv("DATA_DIR", "data"),
			TempDir: getEnv("TEMP_DIR", "."),
		},
		Maintenance: MaintenanceConfig{
			BackupDir:      getEnv("BACKUP_DIR", "backups/json"),
			MaxBackups:     getEnvAsInt("MAX_BACKUPS", 30),
			CheckInterval:  time.Duration(getEnvAsInt("MAINTENANCE_CHECK_SECONDS", 60)) * time.Second,
			BackupInterval: time.Duration(getEnvAsInt("BACKUP_INTERVAL_HOURS", 6)) * time.Hour,
			CleanupEvery:   time.Duration(getEnvAsInt("CLEANUP_INTERVAL_HOURS", 2)) * time.Hour,
			CleanupHours:   getEnvAsInt("CLEANUP_AGE_HOURS", 24),
			StopTimeout:    5 * time.Second,
		},
		Worker: WorkerConfig{
			PoolSize:  getEnvAsInt("WORKER_POOL_SIZE", 8),
			QueueSize: getEnvAsInt("WORKER_QUEUE_SIZE", 256),
		},
		Broker: BrokerConfig{
			NatsURL:  getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Otel: OtelConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
