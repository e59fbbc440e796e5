// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command claimsd starts the claims validation HTTP server.
//
// This is the main entry point for the containerized claims service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - CLAIMSD_PORT: HTTP server port (default: 12220)
//   - CLAIMS_RULES_PATH: YAML code reference ruleset (default: ./config/rules.yaml)
//   - CLAIMS_WATCH_RULES: hot reload the ruleset on change (default: true)
//   - DATABASE_URL: Postgres DSN for the reference store (optional; overrides the YAML store)
//   - LLM_BACKEND_TYPE: LLM provider - anthropic, openai, ollama, none (default: anthropic)
//   - CONTEXT_STORE: conversation context store - memory, badger (default: memory)
//   - CONTEXT_STORE_PATH: Badger directory (default: ./data/contexts)
//   - CONTEXT_CACHE_TTL: TTL for cached LLM system contexts (default: 5m)
//   - AGENT_TIMEOUT: per-agent evaluation timeout (default: 10s)
//   - COST_THRESHOLD: relative charge deviation that triggers a cost finding (default: 0.50)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: claims-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o claimsd ./cmd/claimsd
//
//	# Run
//	./claimsd
//
//	# Or via container
//	podman-compose up claimsd
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:             getEnvInt("CLAIMSD_PORT", 12220),
		RulesPath:        getEnvString("CLAIMS_RULES_PATH", "./config/rules.yaml"),
		WatchRules:       getEnvBool("CLAIMS_WATCH_RULES", true),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LLMBackend:       getEnvString("LLM_BACKEND_TYPE", "anthropic"),
		ContextStore:     getEnvString("CONTEXT_STORE", "memory"),
		ContextStorePath: getEnvString("CONTEXT_STORE_PATH", "./data/contexts"),
		ContextCacheTTL:  getEnvDuration("CONTEXT_CACHE_TTL", 5*time.Minute),
		AgentTimeout:     getEnvDuration("AGENT_TIMEOUT", 10*time.Second),
		CostThreshold:    getEnvFloat("COST_THRESHOLD", 0.50),
		OTelEndpoint:     getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "claims-otel-collector:4317"),
	}

	slog.Info("Starting claims validation service",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"context_store", cfg.ContextStore,
		"rules_path", cfg.RulesPath,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create claims service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Claims service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Invalid duration, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}
