package config

import (
	"os"
	"testing"
)

func TestConfigDefaultValues(t *testing.T) {
	// Clear any existing env vars that might interfere
	envVars := []string{
		"PORT",
		"RATE_LIMIT_WINDOW_IN_SECONDS",
		"RATE_LIMIT_MAX_REQUESTS",
		"DISTANCE_CACHE_TTL_IN_SECONDS",
		"CACHE_INVALIDATION_INTERVAL_IN_SECONDS",
		"UPSTREAM_MAX_RETRIES",
		"UPSTREAM_BASE_DELAY_IN_MS",
		"UPSTREAM_TIMEOUT_IN_MS",
		"CIRCUIT_BREAKER_THRESHOLD",
		"FF_DEBUG_ERRORS",
	}

	// Store original values
	originalValues := make(map[string]string)
	for _, key := range envVars {
		originalValues[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		// Restore original values
		for key, value := range originalValues {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{
			name:     "Port default",
			got:      cfg.Configuration.Port,
			expected: "8080",
		},
		{
			name:     "RateLimitWindowInSeconds default",
			got:      cfg.Configuration.RateLimitWindowInSeconds,
			expected: 60,
		},
		{
			name:     "RateLimitMaxRequests default",
			got:      cfg.Configuration.RateLimitMaxRequests,
			expected: 100,
		},
		{
			name:     "DistanceCacheTTLInSeconds default",
			got:      cfg.Configuration.DistanceCacheTTLInSeconds,
			expected: 86400,
		},
		{
			name:     "UpstreamMaxRetries default",
			got:      cfg.Configuration.UpstreamMaxRetries,
			expected: 3,
		},
		{
			name:     "UpstreamBaseDelayInMs default",
			got:      cfg.Configuration.UpstreamBaseDelayInMs,
			expected: 1000,
		},
		{
			name:     "UpstreamTimeoutInMs default",
			got:      cfg.Configuration.UpstreamTimeoutInMs,
			expected: 10000,
		},
		{
			name:     "CircuitBreakerThreshold default",
			got:      cfg.Configuration.CircuitBreakerThreshold,
			expected: 5,
		},
		{
			name:     "DebugErrors default",
			got:      cfg.FeatureFlags.DebugErrors,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	os.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	os.Setenv("FF_DEBUG_ERRORS", "true")
	defer func() {
		os.Unsetenv("RATE_LIMIT_MAX_REQUESTS")
		os.Unsetenv("FF_DEBUG_ERRORS")
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Configuration.RateLimitMaxRequests != 10 {
		t.Errorf("Expected RateLimitMaxRequests 10, got %d", cfg.Configuration.RateLimitMaxRequests)
	}
	if !cfg.FeatureFlags.DebugErrors {
		t.Error("Expected DebugErrors true")
	}
}
