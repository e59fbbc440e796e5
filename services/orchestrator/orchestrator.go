// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles and runs the claims validation server:
// HTTP routing, the code reference store, the validation pipeline, the
// LLM-backed explanation and conversation services, and observability
// infrastructure.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/agents"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
	"github.com/AleutianAI/ClaimsGuardian/services/conversation"
	"github.com/AleutianAI/ClaimsGuardian/services/explain"
	"github.com/AleutianAI/ClaimsGuardian/services/llm"
	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/observability"
	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/routes"
	"github.com/AleutianAI/ClaimsGuardian/services/validation"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the claims validation server.
//
// # Description
//
// Service abstracts the server lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds claims server configuration options.
//
// # Description
//
// Config centralizes all configuration for the validation service.
// Values can be populated from environment variables, config files,
// or programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults, though without RulesPath or
// DatabaseURL the reference store is empty and most agents have nothing
// to check against.
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// RulesPath is the YAML ruleset for the in-memory reference store.
	// Ignored when DatabaseURL is set. Default: "./config/rules.yaml"
	RulesPath string

	// WatchRules enables hot reload of the YAML ruleset on change.
	// Default: true
	WatchRules bool

	// DatabaseURL selects the Postgres-backed reference store when set.
	// Example: "postgres://claims:...@db:5432/claims"
	DatabaseURL string

	// LLMBackend specifies the LLM provider for explanations and
	// conversation. Valid values: "anthropic"/"claude", "openai",
	// "ollama", "none". Default: "anthropic"
	LLMBackend string

	// ContextStore selects where validation contexts are kept for
	// follow-up questions. Valid values: "memory", "badger".
	// Default: "memory"
	ContextStore string

	// ContextStorePath is the Badger directory when ContextStore is
	// "badger". Default: "./data/contexts"
	ContextStorePath string

	// ContextCacheTTL is the TTL for cached LLM system contexts.
	// Default: 5 minutes.
	ContextCacheTTL time.Duration

	// AgentTimeout bounds each validation agent. Default: 10 seconds.
	AgentTimeout time.Duration

	// CostThreshold is the relative charge deviation that triggers a
	// cost finding. Default: 0.50
	CostThreshold float64

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "claims-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - the code reference store (YAML or Postgres)
//   - the concurrent validation pipeline
//   - LLM-backed explanations and conversation
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config          Config
	router          *gin.Engine
	store           codestore.Store
	storeClose      func()
	llmClient       llm.LLMClient
	llmBackend      string
	cache           *explain.ContextCache
	explainSvc      *explain.Service
	contextStore    conversation.ContextStore
	conversationSvc *conversation.Service
	pipeline        *validation.Pipeline
	tracerCleanup   func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new claims validation Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens the code reference store (Postgres or YAML)
//  5. Creates the LLM client, explanation and conversation services
//  6. Builds the validation pipeline
//  7. Sets up HTTP routes
//
// A missing or failing LLM backend is not fatal: validation still runs,
// findings keep their rule-engine explanations, and the ask endpoint is
// not mounted.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run claims server
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Initialize OpenTelemetry tracer
	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Initialize Prometheus metrics
	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for claims validation")
	}

	// Open the code reference store
	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open code reference store: %w", err)
	}

	// Initialize LLM-backed services (optional)
	s.initLLMServices()

	// Initialize the conversation context store
	if err := s.initContextStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open context store: %w", err)
	}

	// Build the validation pipeline
	opts := []validation.PipelineOption{
		validation.WithAgentTimeout(s.config.AgentTimeout),
		validation.WithContextSink(s.contextStore),
	}
	if s.explainSvc != nil {
		opts = append(opts, validation.WithAnnotator(s.explainSvc))
	}
	s.pipeline = validation.NewPipeline(s.store,
		agents.Config{CostThreshold: s.config.CostThreshold}, opts...)

	if s.llmClient != nil {
		s.conversationSvc = conversation.NewService(s.llmClient, s.llmBackend, s.contextStore, s.explainSvc)
	}

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting claims validation server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing. Should not be
// used to modify routes after construction.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = "./config/rules.yaml"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "anthropic"
	}
	if cfg.ContextStore == "" {
		cfg.ContextStore = "memory"
	}
	if cfg.ContextStorePath == "" {
		cfg.ContextStorePath = "./data/contexts"
	}
	if cfg.ContextCacheTTL == 0 {
		cfg.ContextCacheTTL = explain.DefaultContextTTL
	}
	if cfg.AgentTimeout == 0 {
		cfg.AgentTimeout = validation.DefaultAgentTimeout
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "claims-otel-collector:4317"
	}
	cfg.EnableMetrics = true

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("claims-validation-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the code reference store: Postgres when DatabaseURL is
// set, otherwise the YAML-backed in-memory store with optional hot
// reload.
func (s *service) initStore() error {
	if s.config.DatabaseURL != "" {
		store, err := codestore.NewPostgresStore(context.Background(), s.config.DatabaseURL)
		if err != nil {
			return err
		}
		s.store = store
		s.storeClose = store.Close
		slog.Info("Using Postgres code reference store", "version", store.SnapshotVersion())
		return nil
	}

	store, err := codestore.LoadFile(s.config.RulesPath)
	if err != nil {
		return err
	}
	if s.config.WatchRules {
		if err := store.Watch(s.config.RulesPath); err != nil {
			slog.Warn("Rule hot reload unavailable", "path", s.config.RulesPath, "error", err)
		}
	}
	s.store = store
	s.storeClose = func() {
		if err := store.Close(); err != nil {
			slog.Warn("Code reference store close error", "error", err)
		}
	}
	slog.Info("Using YAML code reference store",
		"path", s.config.RulesPath,
		"version", store.SnapshotVersion(),
	)
	return nil
}

// initLLMServices creates the LLM client and the explanation service.
// Failure is downgraded to a warning: the pipeline runs without
// narration.
func (s *service) initLLMServices() {
	var (
		client llm.LLMClient
		err    error
	)

	switch s.config.LLMBackend {
	case "none":
		slog.Info("LLM backend disabled, findings keep rule-engine explanations")
		return
	case "openai":
		client, err = llm.NewOpenAIClient()
		s.llmBackend = "openai"
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		s.llmBackend = "ollama"
		slog.Info("Using Ollama LLM backend")
	case "claude", "anthropic":
		client, err = llm.NewAnthropicClient()
		s.llmBackend = "anthropic"
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to anthropic", "backend", s.config.LLMBackend)
		client, err = llm.NewAnthropicClient()
		s.llmBackend = "anthropic"
	}
	if err != nil {
		slog.Warn("LLM client unavailable, running without explanations",
			"backend", s.llmBackend, "error", err)
		return
	}

	s.llmClient = client
	s.cache = explain.NewContextCache(s.config.ContextCacheTTL)
	s.explainSvc = explain.NewService(client, s.llmBackend, s.store, s.cache)
}

// initContextStore opens the conversation context store.
func (s *service) initContextStore() error {
	switch s.config.ContextStore {
	case "badger":
		store, err := conversation.NewBadgerStore(
			conversation.DefaultBadgerConfig(s.config.ContextStorePath))
		if err != nil {
			return err
		}
		s.contextStore = store
		slog.Info("Using Badger context store", "path", s.config.ContextStorePath)
	default:
		s.contextStore = conversation.NewMemoryStore()
		slog.Info("Using in-memory context store")
	}
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("claims-validation-service"))

	routes.SetupRoutes(s.router, s.pipeline, s.conversationSvc, s.store)
}

// cleanup releases all resources held by the service.
// Called when Run() exits or on initialization failure.
func (s *service) cleanup() {
	if s.cache != nil {
		s.cache.Stop()
	}
	if s.contextStore != nil {
		if err := s.contextStore.Close(); err != nil {
			slog.Warn("Context store close error", "error", err)
		}
	}
	if s.storeClose != nil {
		s.storeClose()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
