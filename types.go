package main

import (
	"distance-api-go/cache"
)

// distanceRequest is the inbound JSON body for /getDistance.
type distanceRequest struct {
	OriginAddress      string  `json:"originAddress"`
	DestinationAddress string  `json:"destinationAddress"`
	ReferenceLatitude  float64 `json:"referenceLatitude"`
	ReferenceLongitude float64 `json:"referenceLongitude"`
}

// errorResponse is the stable body shape of every error response. Error is a
// machine-readable code, never a raw exception message; requestId correlates
// with server-side logs.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId"`
}

// healthResponse is the /health body
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	CacheEntries  int    `json:"cache_entries"`
	CircuitState  string `json:"circuit_state"`
}

// CacheDump represents the full cache contents
type CacheDump map[string]cache.Entry

// CacheDumpResponse is the response format for /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int       `json:"number_of_keys"`
	SizeInKB     int       `json:"size_kb"`
	Cache        CacheDump `json:"cache"`
}
