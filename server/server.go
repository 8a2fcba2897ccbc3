package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/agent"
	"github.com/xiaoyuanzhu-com/hound/db"
	"github.com/xiaoyuanzhu-com/hound/inference"
	"github.com/xiaoyuanzhu-com/hound/ingest"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/notifications"
	"github.com/xiaoyuanzhu-com/hound/tools"
	"github.com/xiaoyuanzhu-com/hound/vendors"
	"github.com/xiaoyuanzhu-com/hound/workers/meili"
)

// Options overrides components that are otherwise built from configuration
type Options struct {
	// Model replaces the configured model provider
	Model llm.Client
	// Tools are executors offered to every chat in addition to the built-ins
	Tools []tools.Executor
	// Version is reported to MCP servers
	Version string
}

// Server owns and coordinates all application components
type Server struct {
	cfg  *Config
	opts Options

	// Components (owned by server)
	database     *db.DB
	notifService *notifications.Service
	model        llm.Client
	pipeline     *inference.Pipeline
	agentLoop    *agent.Loop
	ingestWorker *ingest.Worker
	search       *vendors.MeiliClient
	searchSync   *meili.SyncWorker

	mcpMu sync.RWMutex
	mcp   *tools.MCPExecutor

	janitorStop chan struct{}
	janitorDone chan struct{}

	// Shutdown context - cancelled when server is shutting down.
	// Long-running handlers (SSE) should listen to this.
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	// HTTP
	router *gin.Engine
	http   *http.Server
}

// New creates a new server with all components initialized
func New(cfg *Config, opts Options) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:            cfg,
		opts:           opts,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}

	// 1. Open database
	log.Info().Msg("initializing database")
	database, err := db.Open(cfg.ToDBConfig())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.database = database

	// 2. Create notifications service
	log.Info().Msg("initializing notifications service")
	s.notifService = notifications.NewService()

	// 3. Model provider
	s.model = opts.Model
	if s.model == nil {
		if client := vendors.GetOpenAIClient(); client != nil {
			s.model = client
		}
	}

	// 4. Search
	if cfg.MeiliHost != "" {
		s.search = vendors.GetMeiliClient()
	}
	if s.search != nil {
		log.Info().Msg("initializing search index sync")
		s.searchSync = meili.NewSyncWorker(cfg.ToSyncConfig(), s.database, s.search)
	}

	// 5. Inference pipeline, agent loop and ingest worker need a model
	if s.model != nil {
		log.Info().Msg("initializing inference pipeline")
		s.pipeline = inference.NewPipeline(
			inference.NewClassifier(s.model, cfg.ClassifierMaxTokens),
			inference.NewExtractor(s.model),
			cfg.ToPipelineOptions(),
		)
		s.agentLoop = agent.NewLoop(s.model, cfg.ToAgentConfig())

		log.Info().Msg("initializing ingest worker")
		var indexer ingest.Indexer
		if s.searchSync != nil {
			indexer = s.searchSync
		}
		s.ingestWorker = ingest.NewWorker(cfg.ToIngestConfig(), s.pipeline, s.database, indexer, s.notifService)
	} else {
		log.Warn().Msg("no model provider configured, inference and chat disabled")
	}

	// 6. Setup HTTP router
	s.setupRouter()

	log.Info().Msg("server initialized successfully")
	return s, nil
}

// setupRouter creates and configures the Gin router
func (s *Server) setupRouter() {
	// Set Gin mode
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	s.router = gin.New()

	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(log.GinLogger())

	// CORS for development
	if s.cfg.IsDevelopment() {
		s.router.Use(s.corsMiddleware())
	}

	// Security headers (production only)
	if !s.cfg.IsDevelopment() {
		s.router.Use(s.securityHeadersMiddleware())
	}

	// Gzip compression (skip SSE endpoints)
	s.router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/api/chat",                 // SSE - agent events
		"/api/notifications/stream", // SSE - needs streaming
	})))

	// Trust proxy headers
	s.router.SetTrustedProxies(nil)

	// Ignore .well-known requests
	s.router.GET("/.well-known/*path", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	// Note: API routes should be set up by calling code
	// to avoid import cycles
}

// corsMiddleware handles CORS for development environments
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			"http://localhost:5173": true,
		}

		if allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Entity-Id, X-Composio-Signature")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeadersMiddleware adds security headers for production
func (s *Server) securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// Start starts all background services and the HTTP server
func (s *Server) Start() error {
	log.Info().Msg("starting server components")

	s.StartBackground()

	// Create HTTP server
	s.http = &http.Server{
		Addr:     fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:  s.router,
		ErrorLog: log.StdErrorLogger(), // Route Go's internal HTTP errors through zerolog
	}

	log.Info().
		Str("addr", s.http.Addr).
		Str("env", s.cfg.Env).
		Msg("HTTP server starting")

	// Start HTTP server (blocks)
	return s.http.ListenAndServe()
}

// StartBackground connects remote tools and starts the search index sync, the
// ingest worker and the retention janitor
func (s *Server) StartBackground() {
	s.connectMCP()

	if s.searchSync != nil {
		s.searchSync.Start()
	}
	if s.ingestWorker != nil {
		s.ingestWorker.Start()
	}

	interval := s.cfg.PurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}
	s.janitorStop = make(chan struct{})
	s.janitorDone = make(chan struct{})
	go s.janitorLoop(interval)
}

// connectMCP connects the configured MCP server. Failure leaves chat running
// with the built-in tools only.
func (s *Server) connectMCP() {
	if s.cfg.MCPServerURL == "" && s.cfg.MCPServerCommand == "" {
		return
	}

	transport, err := tools.NewMCPTransport(s.cfg.MCPServerURL, s.cfg.MCPServerCommand)
	if err != nil {
		log.Error().Err(err).Msg("invalid MCP configuration")
		return
	}

	ctx, cancel := context.WithTimeout(s.shutdownCtx, 15*time.Second)
	defer cancel()

	executor, err := tools.ConnectMCP(ctx, transport, s.opts.Version)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect MCP server, continuing with built-in tools")
		return
	}

	s.mcpMu.Lock()
	s.mcp = executor
	s.mcpMu.Unlock()
}

// janitorLoop purges expired proposals, dedup entries and rate limit windows
func (s *Server) janitorLoop(interval time.Duration) {
	defer close(s.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.PurgeExpired()
		case <-s.janitorStop:
			return
		}
	}
}

// PurgeExpired runs one retention pass
func (s *Server) PurgeExpired() {
	n, err := s.database.PurgeExpired()
	if err != nil {
		log.Error().Err(err).Msg("failed to purge expired records")
		return
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("purged expired records")
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")

	// 1. Signal long-running handlers (SSE) to stop
	log.Info().Msg("signaling handlers to stop")
	s.shutdownCancel()

	// 2. Close notification service to cleanly disconnect SSE clients
	s.notifService.Shutdown()

	// 3. Shutdown HTTP server (stop accepting new requests and wait for existing ones)
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Stop background services (in reverse order of startup)
	if s.janitorStop != nil {
		close(s.janitorStop)
		<-s.janitorDone
	}
	if s.ingestWorker != nil {
		s.ingestWorker.Stop()
	}
	if s.searchSync != nil {
		s.searchSync.Stop()
	}
	s.mcpMu.Lock()
	if s.mcp != nil {
		if err := s.mcp.Close(); err != nil {
			log.Warn().Err(err).Msg("mcp session close error")
		}
		s.mcp = nil
	}
	s.mcpMu.Unlock()

	// Close database last
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error().Err(err).Msg("database close error")
			return err
		}
	}

	log.Info().Msg("server shutdown complete")
	return nil
}

// ToolsFor returns the tool router offered to one entity's chat: built-in
// proposal tools first, then configured executors, then the MCP server.
func (s *Server) ToolsFor(entityID string) *tools.Router {
	executors := []tools.Executor{
		tools.NewBuiltinRegistry(tools.BuiltinOptions{
			EntityID: entityID,
			Store:    s.database,
			OnDismiss: func(entityID, proposalID string) {
				if s.search != nil {
					if err := s.search.DeleteProposal(entityID, proposalID); err != nil {
						log.Warn().Err(err).Str("proposalId", proposalID).Msg("failed to remove proposal from search index")
					}
				}
				s.notifService.NotifyProposalRemoved(entityID, proposalID)
			},
		}),
	}
	executors = append(executors, s.opts.Tools...)

	s.mcpMu.RLock()
	if s.mcp != nil {
		executors = append(executors, s.mcp)
	}
	s.mcpMu.RUnlock()

	return tools.NewRouter(executors...)
}

// Component accessors for API handlers
func (s *Server) Config() *Config                       { return s.cfg }
func (s *Server) DB() *db.DB                            { return s.database }
func (s *Server) Notifications() *notifications.Service { return s.notifService }
func (s *Server) Pipeline() *inference.Pipeline         { return s.pipeline }
func (s *Server) Agent() *agent.Loop                    { return s.agentLoop }
func (s *Server) Ingest() *ingest.Worker                { return s.ingestWorker }
func (s *Server) Search() *vendors.MeiliClient          { return s.search }
func (s *Server) SearchSync() *meili.SyncWorker         { return s.searchSync }
func (s *Server) Router() *gin.Engine                   { return s.router }
func (s *Server) ShutdownContext() context.Context      { return s.shutdownCtx }
