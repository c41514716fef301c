// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig mirrors the connection parameters sqlx/lib-pq need to open
// a pool against the relational store that owns projects, prompts, job
// batches and tracking results.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// ProviderAConfig configures the polling scraping provider (dataset
// trigger/progress/snapshot API, BrightData-shaped).
type ProviderAConfig struct {
	APIKey    string
	DatasetID string
	BaseURL   string
}

// ProviderBConfig configures the callback-driven scraping provider.
type ProviderBConfig struct {
	APIKey  string
	BaseURL string
}

// QueueConfig configures the event bus used to fan a submission out into
// per-provider shard messages.
type QueueConfig struct {
	ProjectID  string
	EventKey   string
	SigningKey string
}

// EmailConfig configures the outbound transactional-email notifier.
type EmailConfig struct {
	APIKey            string
	FromAddress       string
	TemplateSubmitted string
	TemplateSucceeded string
	TemplateFailed    string
}

// SchedulerConfig configures the nightly cron trigger and its test envelope.
type SchedulerConfig struct {
	CronExpression string
	TestingMode    bool
	TestUserID     string
	TestProjectID  string
}

// VolumeConfig configures the AI-search-volume trend provider.
type VolumeConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// QdrantConfig configures the vector store backing the citation-hostname
// near-duplicate cache (internal/cache).
type QdrantConfig struct {
	Host string
	Port int
}

// TypesenseConfig configures the exact-match store backing the
// citation-hostname cache (internal/cache).
type TypesenseConfig struct {
	Host   string
	Port   int
	APIKey string
}

// Config is the fully-resolved process configuration.
type Config struct {
	Port        string
	Environment string

	Database DatabaseConfig

	OpenAIAPIKey    string
	AnthropicAPIKey string
	DefaultModel    string

	ProviderA ProviderAConfig
	ProviderB ProviderBConfig
	Queue     QueueConfig
	Email     EmailConfig
	Scheduler SchedulerConfig
	Volume    VolumeConfig
	Qdrant    QdrantConfig
	Typesense TypesenseConfig

	AppURL         string
	UnsubscribeURL string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8000"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		DefaultModel:    getEnv("DEFAULT_OPENAI_MODEL", "gpt-4.1"),
		AppURL:          os.Getenv("APP_URL"),
		UnsubscribeURL:  os.Getenv("UNSUBSCRIBE_URL"),
	}

	dbConfig, err := parseDatabaseConfig()
	if err != nil {
		// DATABASE_URL absent or malformed: fall back to discrete DB_* vars.
		dbConfig = DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "prompt_pipeline"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		}
	}
	cfg.Database = dbConfig

	cfg.ProviderA = ProviderAConfig{
		APIKey:    os.Getenv("PROVIDER_A_API_KEY"),
		DatasetID: os.Getenv("PROVIDER_A_DATASET_ID"),
		BaseURL:   getEnv("PROVIDER_A_BASE_URL", "https://api.brightdata.com/datasets/v3"),
	}
	cfg.ProviderB = ProviderBConfig{
		APIKey:  os.Getenv("PROVIDER_B_API_KEY"),
		BaseURL: getEnv("PROVIDER_B_BASE_URL", "https://api.scrapeless.com/api/v2/scraper"),
	}
	cfg.Queue = QueueConfig{
		ProjectID:  os.Getenv("QUEUE_PROJECT_ID"),
		EventKey:   os.Getenv("INNGEST_EVENT_KEY"),
		SigningKey: os.Getenv("INNGEST_SIGNING_KEY"),
	}
	cfg.Email = EmailConfig{
		APIKey:            os.Getenv("EMAIL_SERVICE_API_KEY"),
		FromAddress:       getEnv("EMAIL_FROM_ADDRESS", "alerts@aivisible.example"),
		TemplateSubmitted: os.Getenv("EMAIL_TEMPLATE_SUBMITTED"),
		TemplateSucceeded: os.Getenv("EMAIL_TEMPLATE_SUCCEEDED"),
		TemplateFailed:    os.Getenv("EMAIL_TEMPLATE_FAILED"),
	}
	cfg.Scheduler = SchedulerConfig{
		CronExpression: getEnv("NIGHTLY_CRON_SCHEDULE", "0 4 * * *"),
		TestingMode:    strings.EqualFold(os.Getenv("TESTING_MODE"), "true"),
		TestUserID:     os.Getenv("TEST_USER_ID"),
		TestProjectID:  os.Getenv("TEST_PROJECT_ID"),
	}
	cfg.Volume = VolumeConfig{
		APIKey:    os.Getenv("VOLUME_API_KEY"),
		APISecret: os.Getenv("VOLUME_API_SECRET"),
		BaseURL:   getEnv("VOLUME_BASE_URL", "https://api.dataforseo.com/v3"),
	}
	cfg.Qdrant = QdrantConfig{
		Host: getEnv("QDRANT_HOST", "localhost"),
		Port: getEnvInt("QDRANT_PORT", 6334),
	}
	cfg.Typesense = TypesenseConfig{
		Host:   getEnv("TYPESENSE_HOST", "localhost"),
		Port:   getEnvInt("TYPESENSE_PORT", 8108),
		APIKey: os.Getenv("TYPESENSE_API_KEY"),
	}

	return cfg
}

func parseDatabaseConfig() (DatabaseConfig, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL not set")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	cfg := DatabaseConfig{
		Host:            parsedURL.Hostname(),
		Port:            5432,
		User:            parsedURL.User.Username(),
		Name:            strings.TrimPrefix(parsedURL.Path, "/"),
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	if password, ok := parsedURL.User.Password(); ok {
		cfg.Password = password
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			cfg.Port = port
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
