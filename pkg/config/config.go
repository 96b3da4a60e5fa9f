package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/erzulfequar/OCR-Backend/pkg/parsers"
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Config holds the application configuration
type Config struct {
	Port         string
	GeminiAPIKey string
	GeminiModel  string

	OCRLanguage     string
	UploadDir       string
	SynonymsFile    string
	StrategyTimeout time.Duration
	CORSOrigins     []string
	LogLevel        string

	DB DBConfig
}

// DBConfig holds the PostgreSQL connection settings
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig() *Config {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if the .env file doesn't exist
		log.Info("No .env file found. Using system environment variables.")
	} else {
		log.Info("Loaded environment variables from .env file.")
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", parsers.DefaultGeminiModel),
		OCRLanguage:  getEnv("OCR_LANG", "eng"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		SynonymsFile: os.Getenv("SYNONYMS_FILE"),
		CORSOrigins:  splitList(os.Getenv("CORS_ORIGINS"), defaultCORSOrigins),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "invoices"),
		},
	}

	if v := os.Getenv("STRATEGY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.WithError(err).WithField("value", v).Warn("invalid STRATEGY_TIMEOUT, strategies run unbounded")
		} else {
			cfg.StrategyTimeout = d
		}
	}

	// The AI strategy is optional; without a key the chain starts at OCR.
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY environment variable is not set, AI extraction disabled")
	}

	return cfg
}

// SetupLogging configures the global logger
func SetupLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// InitGeminiClient initializes the Gemini client
func InitGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string, fallback []string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
