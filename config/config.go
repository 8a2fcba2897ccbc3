package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     int
	Host     string
	Env      string // "development" or "production"
	LogLevel string

	// Data directory
	DataDir string

	// Database
	DatabasePath string
	DBLogQueries bool

	// Model provider
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAIClassifierModel string

	// Inference
	ConfidenceThreshold float64
	ClassifierMaxTokens int

	// Agent loop
	AgentMaxSteps    int
	AgentStepTimeout time.Duration

	// Ingestion
	IngestWorkers     int
	IngestQueueSize   int
	WebhookSecret     string
	UserID            string
	SlackUserID       string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	ProposalTTL       time.Duration
	SeenMessageTTL    time.Duration

	// Remote tools
	MCPServerURL     string
	MCPServerCommand string

	// Search
	MeiliHost         string
	MeiliAPIKey       string
	MeiliIndex        string
	MeiliSyncInterval time.Duration
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load(newViper())
	})
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("PORT", 8000)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HOUND_DATA_DIR", "./data")
	v.SetDefault("DB_LOG_QUERIES", false)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_CLASSIFIER_MODEL", "")

	v.SetDefault("CONFIDENCE_THRESHOLD", 0.6)
	v.SetDefault("CLASSIFIER_MAX_TOKENS", 50)

	v.SetDefault("AGENT_MAX_STEPS", 5)
	v.SetDefault("AGENT_STEP_TIMEOUT", "60s")

	v.SetDefault("INGEST_WORKERS", 3)
	v.SetDefault("INGEST_QUEUE_SIZE", 256)
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("USER_ID", "default")
	v.SetDefault("SLACK_USER_ID", "")
	v.SetDefault("RATE_LIMIT_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("PROPOSAL_TTL", "168h")
	v.SetDefault("SEEN_MESSAGE_TTL", "1h")

	v.SetDefault("MCP_SERVER_URL", "")
	v.SetDefault("MCP_SERVER_COMMAND", "")

	v.SetDefault("MEILI_HOST", "")
	v.SetDefault("MEILI_API_KEY", "")
	v.SetDefault("MEILI_INDEX", "hound_proposals")
	v.SetDefault("MEILI_SYNC_INTERVAL", "10s")

	// Optional env file next to the binary; environment variables win.
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	return v
}

// load reads configuration from a viper instance
func load(v *viper.Viper) *Config {
	dataDir := v.GetString("HOUND_DATA_DIR")

	classifierModel := v.GetString("OPENAI_CLASSIFIER_MODEL")
	if classifierModel == "" {
		classifierModel = v.GetString("OPENAI_MODEL")
	}

	return &Config{
		// Server
		Port:     v.GetInt("PORT"),
		Host:     v.GetString("HOST"),
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),

		// Data
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "hound.sqlite"),
		DBLogQueries: v.GetBool("DB_LOG_QUERIES"),

		// OpenAI
		OpenAIAPIKey:          v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:         v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:           v.GetString("OPENAI_MODEL"),
		OpenAIClassifierModel: classifierModel,

		// Inference
		ConfidenceThreshold: v.GetFloat64("CONFIDENCE_THRESHOLD"),
		ClassifierMaxTokens: v.GetInt("CLASSIFIER_MAX_TOKENS"),

		// Agent
		AgentMaxSteps:    v.GetInt("AGENT_MAX_STEPS"),
		AgentStepTimeout: v.GetDuration("AGENT_STEP_TIMEOUT"),

		// Ingestion
		IngestWorkers:     v.GetInt("INGEST_WORKERS"),
		IngestQueueSize:   v.GetInt("INGEST_QUEUE_SIZE"),
		WebhookSecret:     v.GetString("WEBHOOK_SECRET"),
		UserID:            v.GetString("USER_ID"),
		SlackUserID:       v.GetString("SLACK_USER_ID"),
		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
		ProposalTTL:       v.GetDuration("PROPOSAL_TTL"),
		SeenMessageTTL:    v.GetDuration("SEEN_MESSAGE_TTL"),

		// MCP
		MCPServerURL:     v.GetString("MCP_SERVER_URL"),
		MCPServerCommand: v.GetString("MCP_SERVER_COMMAND"),

		// Meilisearch
		MeiliHost:   v.GetString("MEILI_HOST"),
		MeiliAPIKey: v.GetString("MEILI_API_KEY"),
		MeiliIndex:  v.GetString("MEILI_INDEX"),

		MeiliSyncInterval: v.GetDuration("MEILI_SYNC_INTERVAL"),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return !strings.EqualFold(c.Env, "production")
}

// HasOpenAI reports whether a model provider key is configured
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
