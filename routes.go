package main

import (
	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func (a *app) setupRoutes(router *mux.Router) {
	// Core endpoint - bearer token required
	router.HandleFunc("/getDistance", a.getDistance)

	// Cache management endpoints - gated by the cache access token
	router.HandleFunc("/cache", a.getCacheDump)
	router.HandleFunc("/cache/clear", a.clearCache)

	// Health and stats endpoints
	router.HandleFunc("/health", a.getHealthStatus)
	router.HandleFunc("/stats", a.getStats)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", a.getCircuitBreakerStatus)
	router.HandleFunc("/circuit-breaker/reset", a.resetCircuitBreaker)

	// Help endpoint
	router.HandleFunc("/", helpHandler)
}
