package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests    atomic.Int64
	DistanceRequests atomic.Int64
	HealthRequests   atomic.Int64
	AdminRequests    atomic.Int64
	OtherRequests    atomic.Int64

	// Cache performance
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	// Rate limiting
	RateLimitAllowed  atomic.Int64
	RateLimitRejected atomic.Int64

	// Upstream calls
	UpstreamAttempts atomic.Int64
	UpstreamFailures atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64
}

// Global stats instance
var global = newStats()

func newStats() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(int64(^uint64(0) >> 1)) // max int64
	return s
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/getDistance":
		s.DistanceRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	case "/cache", "/cache/clear", "/stats", "/circuit-breaker", "/circuit-breaker/reset":
		s.AdminRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheHit increments the cache hit counter
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
}

// RecordCacheMiss increments the cache miss counter
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
}

// RecordRateLimit records a rate limiting outcome
func (s *Stats) RecordRateLimit(outcome string) {
	switch outcome {
	case "allowed":
		s.RateLimitAllowed.Add(1)
	case "rejected":
		s.RateLimitRejected.Add(1)
	}
}

// RecordUpstreamAttempt counts one outbound call toward the paid API
func (s *Stats) RecordUpstreamAttempt() {
	s.UpstreamAttempts.Add(1)
}

// RecordUpstreamFailure counts one failed outbound call
func (s *Stats) RecordUpstreamFailure() {
	s.UpstreamFailures.Add(1)
}

// RecordStatus records a response status class
func (s *Stats) RecordStatus(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records one response duration
func (s *Stats) RecordResponseTime(d time.Duration) {
	micros := d.Microseconds()
	s.totalResponseTime.Add(micros)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if micros >= current || s.minResponseTime.CompareAndSwap(current, micros) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if micros <= current || s.maxResponseTime.CompareAndSwap(current, micros) {
			break
		}
	}
}

// Snapshot is the JSON shape served by /stats
type Snapshot struct {
	UptimeSeconds     int64   `json:"uptime_seconds"`
	TotalRequests     int64   `json:"total_requests"`
	DistanceRequests  int64   `json:"distance_requests"`
	HealthRequests    int64   `json:"health_requests"`
	AdminRequests     int64   `json:"admin_requests"`
	OtherRequests     int64   `json:"other_requests"`
	CacheHits         int64   `json:"cache_hits"`
	CacheMisses       int64   `json:"cache_misses"`
	CacheHitRate      float64 `json:"cache_hit_rate_percent"`
	RateLimitAllowed  int64   `json:"rate_limit_allowed"`
	RateLimitRejected int64   `json:"rate_limit_rejected"`
	UpstreamAttempts  int64   `json:"upstream_attempts"`
	UpstreamFailures  int64   `json:"upstream_failures"`
	Status2xx         int64   `json:"status_2xx"`
	Status4xx         int64   `json:"status_4xx"`
	Status5xx         int64   `json:"status_5xx"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	MinResponseTimeMs float64 `json:"min_response_time_ms"`
	MaxResponseTimeMs float64 `json:"max_response_time_ms"`
}

// Snapshot returns a point-in-time copy of all counters
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds:     int64(time.Since(s.StartTime).Seconds()),
		TotalRequests:     s.TotalRequests.Load(),
		DistanceRequests:  s.DistanceRequests.Load(),
		HealthRequests:    s.HealthRequests.Load(),
		AdminRequests:     s.AdminRequests.Load(),
		OtherRequests:     s.OtherRequests.Load(),
		CacheHits:         s.CacheHits.Load(),
		CacheMisses:       s.CacheMisses.Load(),
		RateLimitAllowed:  s.RateLimitAllowed.Load(),
		RateLimitRejected: s.RateLimitRejected.Load(),
		UpstreamAttempts:  s.UpstreamAttempts.Load(),
		UpstreamFailures:  s.UpstreamFailures.Load(),
		Status2xx:         s.Status2xx.Load(),
		Status4xx:         s.Status4xx.Load(),
		Status5xx:         s.Status5xx.Load(),
	}

	lookups := snap.CacheHits + snap.CacheMisses
	if lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups) * 100
	}

	count := s.responseCount.Load()
	if count > 0 {
		snap.AvgResponseTimeMs = float64(s.totalResponseTime.Load()) / float64(count) / 1000
		snap.MinResponseTimeMs = float64(s.minResponseTime.Load()) / 1000
		snap.MaxResponseTimeMs = float64(s.maxResponseTime.Load()) / 1000
	}

	return snap
}
