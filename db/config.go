package db

import "time"

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool

	// Retention
	ProposalTTL    time.Duration
	SeenMessageTTL time.Duration
}

const (
	DefaultProposalTTL    = 7 * 24 * time.Hour
	DefaultSeenMessageTTL = time.Hour
	DefaultProposalLimit  = 50
)
