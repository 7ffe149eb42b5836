package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Notifier struct {
		QueueSize         int
		MaxWorkers        int
		TelegramBotToken  string
		TelegramChatID    int64
		TelegramRateLimit int
	}
}

// Device holds device-agent configuration. The intervals and capacities are
// runtime settings so a deployment can be tuned without reflashing.
// ServerURL includes the API base path, e.g. http://host:8080/api/v1.
type Device struct {
	ServerURL         string
	UserID            int64
	DeviceID          string
	ReadingInterval   time.Duration
	SendInterval      time.Duration
	WifiRetryInterval time.Duration
	MaxBufferSize     int
	BatchSendSize     int
	SingleTimeout     time.Duration
	BatchTimeout      time.Duration
}

// Load reads server environment variables, applies defaults, and returns a
// Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.Notifier.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Notifier.TelegramChatID = id
	}
	if qs, err := strconv.Atoi(os.Getenv("NOTIFIER_QUEUE_SIZE")); err == nil {
		cfg.Notifier.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("NOTIFIER_MAX_WORKERS")); err == nil {
		cfg.Notifier.MaxWorkers = mw
	}
	if rl, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Notifier.TelegramRateLimit = rl
	}

	if cfg.DB.DSN == "" {
		return Config{}, fmt.Errorf("missing required configurations: [DB_DSN]")
	}

	// Defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "medical-data"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "vitals-service"
	}
	if cfg.Notifier.QueueSize == 0 {
		cfg.Notifier.QueueSize = 500
	}
	if cfg.Notifier.MaxWorkers == 0 {
		cfg.Notifier.MaxWorkers = 10
	}
	if cfg.Notifier.TelegramRateLimit == 0 {
		cfg.Notifier.TelegramRateLimit = 20
	}

	return cfg, nil
}

// LoadDevice reads device-agent environment variables, applies the reference
// defaults, and returns a Device config.
func LoadDevice() (Device, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Device{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Device

	cfg.ServerURL = os.Getenv("SERVER_URL")
	cfg.DeviceID = os.Getenv("DEVICE_ID")
	if id, err := strconv.ParseInt(os.Getenv("USER_ID"), 10, 64); err == nil {
		cfg.UserID = id
	}

	cfg.ReadingInterval = durationEnv("READING_INTERVAL", 5*time.Minute)
	cfg.SendInterval = durationEnv("SEND_INTERVAL", 30*time.Second)
	cfg.WifiRetryInterval = durationEnv("WIFI_RETRY_INTERVAL", 60*time.Second)
	cfg.SingleTimeout = durationEnv("SINGLE_SEND_TIMEOUT", 10*time.Second)
	cfg.BatchTimeout = durationEnv("BATCH_SEND_TIMEOUT", 15*time.Second)

	cfg.MaxBufferSize = intEnv("MAX_BUFFER_SIZE", 200)
	cfg.BatchSendSize = intEnv("BATCH_SEND_SIZE", 20)

	missing := []string{}
	if cfg.ServerURL == "" {
		missing = append(missing, "SERVER_URL")
	}
	if cfg.DeviceID == "" {
		missing = append(missing, "DEVICE_ID")
	}
	if cfg.UserID == 0 {
		missing = append(missing, "USER_ID")
	}
	if len(missing) > 0 {
		return Device{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}

func intEnv(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}
