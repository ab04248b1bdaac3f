package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Telegram bot
	TelegramBotToken string
	AdminChatIDs     []string

	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// HTTP API
	APIPort int

	// Extractor service endpoint serving the newest listings as JSON
	ScraperURL string

	// Radar loop tuning
	Radar RadarConfig
}

// RadarConfig holds the orchestration parameters. The scoring thresholds are
// NOT here: those live in the system_config table so the AutoTuner can move
// them at runtime.
type RadarConfig struct {
	// Cycle scheduling: uniform random wait in [CycleMinSeconds, CycleMaxSeconds]
	CycleMinSeconds int
	CycleMaxSeconds int

	// Soft deadline for one cycle; queued work past it is abandoned
	CycleDeadlineSeconds int

	// Bounded concurrency for per-deal persistence
	DealWorkers int

	// Bounded concurrency for the notification fan-out
	NotifyConcurrency int

	// Global Telegram send rate (messages per second)
	NotifyRatePerSecond float64

	// Per-call timeouts
	ScrapeTimeoutSeconds  int
	NotifyTimeoutSeconds  int
	StorageTimeoutSeconds int

	// AutoTuner interval
	TunerIntervalHours int

	// Health: a cycle older than this means the radar is stuck
	StaleAfterMinutes int
}

// LoadFromEnv loads configuration from environment variables, reading .env
// first when present. Runtime-tunable scoring numbers live in the database
// instead.
func LoadFromEnv() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminChatIDs:     splitCSV(os.Getenv("ADMIN_CHAT_IDS")),

		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "promodeals"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "promodeals"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "promodeals123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort: getEnvInt("API_PORT", 8080),

		ScraperURL: getEnvOrDefault("SCRAPER_URL", "http://localhost:8090/api/deals/newest"),

		Radar: RadarConfig{
			CycleMinSeconds:      getEnvInt("RADAR_CYCLE_MIN_SECONDS", 300),
			CycleMaxSeconds:      getEnvInt("RADAR_CYCLE_MAX_SECONDS", 720),
			CycleDeadlineSeconds: getEnvInt("RADAR_CYCLE_DEADLINE_SECONDS", 240),
			DealWorkers:          getEnvInt("RADAR_DEAL_WORKERS", 8),
			NotifyConcurrency:    getEnvInt("RADAR_NOTIFY_CONCURRENCY", 10),
			NotifyRatePerSecond:  getEnvFloat("RADAR_NOTIFY_RATE_PER_SECOND", 25.0),
			ScrapeTimeoutSeconds:  getEnvInt("RADAR_SCRAPE_TIMEOUT_SECONDS", 45),
			NotifyTimeoutSeconds:  getEnvInt("RADAR_NOTIFY_TIMEOUT_SECONDS", 20),
			StorageTimeoutSeconds: getEnvInt("RADAR_STORAGE_TIMEOUT_SECONDS", 15),
			TunerIntervalHours:   getEnvInt("RADAR_TUNER_INTERVAL_HOURS", 6),
			StaleAfterMinutes:    getEnvInt("RADAR_STALE_AFTER_MINUTES", 20),
		},
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitCSV parses a comma-separated list, dropping empty entries
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
