package server

import (
	"time"

	"github.com/xiaoyuanzhu-com/hound/agent"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/db"
	"github.com/xiaoyuanzhu-com/hound/ingest"
	"github.com/xiaoyuanzhu-com/hound/inference"
	"github.com/xiaoyuanzhu-com/hound/workers/meili"
)

// Config holds server configuration
type Config struct {
	// Server infrastructure (immutable, requires restart)
	Port int
	Host string
	Env  string // "development" or "production"

	// Paths (immutable, requires restart)
	DatabasePath string

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

	// Retention
	ProposalTTL    time.Duration
	SeenMessageTTL time.Duration
	PurgeInterval  time.Duration

	// Remote tools
	MCPServerURL     string
	MCPServerCommand string

	// Search (disabled when MeiliHost is empty)
	MeiliHost         string
	MeiliSyncInterval time.Duration

	// Debug settings
	DBLogQueries bool
}

// NewConfig derives the server configuration from the global configuration
func NewConfig(c *config.Config) *Config {
	return &Config{
		Port:                c.Port,
		Host:                c.Host,
		Env:                 c.Env,
		DatabasePath:        c.DatabasePath,
		ConfidenceThreshold: c.ConfidenceThreshold,
		ClassifierMaxTokens: c.ClassifierMaxTokens,
		AgentMaxSteps:       c.AgentMaxSteps,
		AgentStepTimeout:    c.AgentStepTimeout,
		IngestWorkers:       c.IngestWorkers,
		IngestQueueSize:     c.IngestQueueSize,
		WebhookSecret:       c.WebhookSecret,
		UserID:              c.UserID,
		SlackUserID:         c.SlackUserID,
		RateLimitRequests:   c.RateLimitRequests,
		RateLimitWindow:     c.RateLimitWindow,
		ProposalTTL:         c.ProposalTTL,
		SeenMessageTTL:      c.SeenMessageTTL,
		PurgeInterval:       time.Hour,
		MCPServerURL:        c.MCPServerURL,
		MCPServerCommand:    c.MCPServerCommand,
		MeiliHost:           c.MeiliHost,
		MeiliSyncInterval:   c.MeiliSyncInterval,
		DBLogQueries:        c.DBLogQueries,
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// ToDBConfig converts server config to database config
func (c *Config) ToDBConfig() db.Config {
	return db.Config{
		Path:            c.DatabasePath,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 0, // Never expire
		LogQueries:      c.DBLogQueries,
		ProposalTTL:     c.ProposalTTL,
		SeenMessageTTL:  c.SeenMessageTTL,
	}
}

// ToIngestConfig converts server config to ingest worker config
func (c *Config) ToIngestConfig() ingest.Config {
	return ingest.Config{
		Workers:   c.IngestWorkers,
		QueueSize: c.IngestQueueSize,
		EntityID:  c.UserID,
		Filter: ingest.FilterOptions{
			SlackUserID: c.SlackUserID,
		},
	}
}

// ToSyncConfig converts server config to search index sync config
func (c *Config) ToSyncConfig() meili.Config {
	return meili.Config{
		Interval:     c.MeiliSyncInterval,
		InitialDelay: meili.DefaultInitialDelay,
	}
}

// ToAgentConfig converts server config to agent loop config
func (c *Config) ToAgentConfig() agent.Config {
	return agent.Config{
		MaxSteps:    c.AgentMaxSteps,
		StepTimeout: c.AgentStepTimeout,
	}
}

// ToPipelineOptions converts server config to inference pipeline options
func (c *Config) ToPipelineOptions() inference.Options {
	return inference.Options{
		Threshold: c.ConfidenceThreshold,
	}
}
