// Package config loads daemon configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/platform"
)

// Config holds all runtime configuration for promptvs.
type Config struct {
	Port    string
	WorkDir string
	DBPath  string

	// APIKey is the environment default credential. A key saved through
	// settings overrides it at run time.
	APIKey        string
	GeminiModel   string
	GeminiBaseURL string

	PriceInputPer1M  float64
	PriceOutputPer1M float64

	EstimateDebounce time.Duration

	TelegramToken  string
	TelegramChatID int64
	WebhookURLs    []string

	UsageDigestCron string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file, then environment variables, and returns a Config.
// Variables already present in the environment are never overridden by .env.
func Load() *Config {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Warnf("config.Load: .env: %v", err)
		}
	}

	workDir := getEnv("WORK_DIR", platform.DefaultWorkDir())
	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		WorkDir: workDir,
		DBPath:  getEnv("DB_PATH", filepath.Join(workDir, "promptvs.db")),

		APIKey:        apiKey,
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		PriceInputPer1M:  getEnvFloat("PRICE_INPUT_PER_1M", 0.075),
		PriceOutputPer1M: getEnvFloat("PRICE_OUTPUT_PER_1M", 0.30),

		EstimateDebounce: time.Duration(getEnvInt("ESTIMATE_DEBOUNCE_MS", 600)) * time.Millisecond,

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: chatID,
		WebhookURLs:    splitList(os.Getenv("WEBHOOK_URLS")),

		UsageDigestCron: getEnv("USAGE_DIGEST_CRON", "0 0 9 * * *"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// SetupLogging applies the configured level and formatter to the global logger.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("config: unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
