// Package server provides the MCP server implementation for the log analytics service.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/audit"
	"github.com/loglens/loglens-mcp-server/internal/auth"
	"github.com/loglens/loglens-mcp-server/internal/client"
	"github.com/loglens/loglens-mcp-server/internal/config"
	"github.com/loglens/loglens-mcp-server/internal/health"
	"github.com/loglens/loglens-mcp-server/internal/metrics"
	"github.com/loglens/loglens-mcp-server/internal/prompts"
	"github.com/loglens/loglens-mcp-server/internal/resources"
	"github.com/loglens/loglens-mcp-server/internal/session"
	"github.com/loglens/loglens-mcp-server/internal/tools"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// Server represents the MCP server
type Server struct {
	mcpServer     *mcp.Server
	apiClient     *client.Client
	config        *config.Config
	logger        *zap.Logger
	metrics       *metrics.Metrics
	auditLogger   *audit.Logger
	session       *session.Context
	version       string
	healthServer  *health.Server
	authenticator *auth.Authenticator
}

// New creates a new MCP server instance.
func New(cfg *config.Config, logger *zap.Logger, version string) (*Server, error) {
	// Create upstream log store client
	apiClient, err := client.New(cfg, logger, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	// Create authenticator for health checks
	authenticator, err := auth.New(cfg.APIKey, cfg.IAMURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	// Create MCP server with tools, prompts, and resources capabilities
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "LogLens MCP Server",
		Version: version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})

	metricsTracker := metrics.New(logger)

	// Scope the analysis cache to the authenticated user so two identities
	// sharing a process never see each other's cached results. The JWT
	// subject identifies the user across sessions; fall back to an API key
	// hash when token retrieval fails.
	if claims, err := authenticator.Identity(); err == nil {
		tools.GetCacheHelper().SetIdentity(claims.Subject, cfg.InstanceName)
		logger.Debug("Initialized cache identity from JWT",
			zap.String("user_id", claims.Subject),
			zap.String("instance", cfg.InstanceName),
		)
	} else {
		logger.Warn("Could not get user identity from token, using API key hash",
			zap.Error(err),
		)
		keyHash := fmt.Sprintf("key-%x", sha256.Sum256([]byte(cfg.APIKey)))[:20]
		tools.GetCacheHelper().SetIdentity(keyHash, cfg.InstanceName)
	}

	s := &Server{
		mcpServer:     mcpServer,
		apiClient:     apiClient,
		config:        cfg,
		logger:        logger,
		metrics:       metricsTracker,
		auditLogger:   audit.NewLogger(logger, cfg.EnableAuditLog),
		session:       session.New(),
		version:       version,
		authenticator: authenticator,
	}

	// Create health server if port is configured (port > 0)
	if cfg.HealthPort > 0 {
		healthChecker := health.New(apiClient, authenticator, logger)
		s.healthServer = health.NewServer(healthChecker, logger, cfg.HealthPort, cfg.HealthBindAddr, cfg.MetricsEndpoint)
	}

	// Register all tools
	s.registerTools()

	// Register all prompts
	s.registerPrompts()

	// Register all resources
	s.registerResources()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	for _, t := range tools.AllTools(s.apiClient, s.auditLogger, s.metrics, s.logger) {
		s.registerTool(t)
	}
	s.logger.Info("Registered all MCP tools")
}

// registerTool is a helper to register a tool with proper error handling.
// It accepts any type that implements the tools.Tool interface.
func (s *Server) registerTool(t tools.Tool) {
	toolName := t.Name()
	timeout := t.DefaultTimeout()

	// Create tool definition with annotations
	mcpTool := &mcp.Tool{
		Name:        toolName,
		Description: t.Description(),
		InputSchema: t.InputSchema(),
		Annotations: t.Annotations(),
	}

	// Create handler that calls the tool's Execute method with metrics tracking
	handler := func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		ctx, span := tracing.ToolSpan(ctx, toolName)
		defer span.End()

		// Add fetcher and session to context for tool execution.
		// This enables per-request injection for future HTTP transport.
		ctx = tools.WithFetcher(ctx, s.apiClient)
		ctx = tools.WithSession(ctx, s.session)

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var args map[string]interface{}
		if len(request.Params.Arguments) > 0 {
			if err := json.Unmarshal(request.Params.Arguments, &args); err != nil {
				s.metrics.RecordToolExecution(toolName, false, time.Since(start))
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
		}

		result, err := t.Execute(ctx, args)
		success := err == nil && (result == nil || !result.IsError)
		if err != nil {
			tracing.RecordError(span, err)
		} else if success {
			tracing.SetSuccess(span)
		}
		s.metrics.RecordToolExecution(toolName, success, time.Since(start))
		s.auditLogger.LogToolExecution(ctx, toolName, "analyze", "log_window", "", success, time.Since(start), err)

		return result, err
	}

	// Register tool with MCP server
	s.mcpServer.AddTool(mcpTool, handler)
	s.logger.Debug("Registered tool", zap.String("tool", mcpTool.Name))
}

// registerPrompts registers all available MCP prompts
func (s *Server) registerPrompts() {
	registry := prompts.NewRegistry(s.logger)

	for _, p := range registry.GetPrompts() {
		s.mcpServer.AddPrompt(p.Prompt, p.Handler)
		s.logger.Debug("Registered prompt", zap.String("prompt", p.Prompt.Name))
	}

	s.logger.Info("Registered all MCP prompts", zap.Int("count", len(registry.GetPrompts())))
}

// registerResources registers all available MCP resources and resource templates
func (s *Server) registerResources() {
	registry := resources.NewRegistry(s.config, s.metrics, s.logger, s.version)

	// Register static resources
	for _, r := range registry.GetResources() {
		s.mcpServer.AddResource(r.Resource, r.Handler)
		s.logger.Debug("Registered resource", zap.String("uri", r.Resource.URI))
	}

	// Register resource templates for dynamic resource access
	templateHandler := registry.GetTemplateHandler()
	for _, t := range registry.GetResourceTemplates() {
		s.mcpServer.AddResourceTemplate(&t, templateHandler)
		s.logger.Debug("Registered resource template", zap.String("uri_template", t.URITemplate))
	}

	s.logger.Info("Registered all MCP resources",
		zap.Int("static_count", len(registry.GetResources())),
		zap.Int("template_count", len(registry.GetResourceTemplates())),
	)
}

// Start starts the MCP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server")

	// Start health HTTP server in background if configured
	if s.healthServer != nil {
		go func() {
			if err := s.healthServer.Start(); err != nil {
				s.logger.Error("Health server error", zap.Error(err))
			}
		}()
		// Mark as ready once server is starting
		s.healthServer.SetReady(true)
	}

	defer func() {
		// Log final metrics on shutdown
		s.metrics.LogStats()

		// Shutdown health server
		if s.healthServer != nil {
			s.healthServer.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.healthServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("Failed to shutdown health server", zap.Error(err))
			}
		}

		if err := s.apiClient.Close(); err != nil {
			s.logger.Error("Failed to close API client", zap.Error(err))
		}
	}()

	// Start serving using stdio transport
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// GetMetrics returns the server's metrics tracker for external access
func (s *Server) GetMetrics() *metrics.Metrics {
	return s.metrics
}
