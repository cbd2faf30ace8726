package distance

import (
	"fmt"
	"strconv"
	"time"
)

// Request describes one distance resolution: two postal addresses plus the
// fixed company base point the quote is computed against. Constructed once
// per inbound call and never mutated.
type Request struct {
	OriginAddress      string
	DestinationAddress string
	ReferenceLatitude  float64
	ReferenceLongitude float64
}

// CacheKey derives the deterministic cache key for this request. The key is
// built from the exact address bytes and an exact decimal rendering of the
// reference point, so byte-identical requests always collide and nothing
// else does. No normalization: "Storgatan 1" and "storgatan 1" are distinct
// entries on purpose.
func (r Request) CacheKey() string {
	return r.OriginAddress + "|" + r.DestinationAddress + "|" + FormatPoint(r.ReferenceLatitude, r.ReferenceLongitude)
}

// FormatPoint renders a coordinate pair as "lat,lon" with the shortest exact
// decimal representation. Used both for cache keys and as the upstream
// waypoint string for the two base legs.
func FormatPoint(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// Result is the assembled outcome of one resolution. Distances are whole
// kilometers, rounded half-up from upstream meters. Cached is true only when
// the value was served from the cache without any upstream call.
type Result struct {
	MovingDistanceKm      int       `json:"movingDistance"`
	BaseToStartDistanceKm int       `json:"baseToStartDistance"`
	BaseToEndDistanceKm   int       `json:"baseToEndDistance"`
	Cached                bool      `json:"cached"`
	CalculatedAt          time.Time `json:"calculatedAt"`
}

// UpstreamKind classifies why an upstream call ultimately failed, so the
// handler can map it onto a distinct status code (504 / 503 / 502).
type UpstreamKind int

const (
	KindGeneric UpstreamKind = iota
	KindTimeout
	KindQuota
)

func (k UpstreamKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindQuota:
		return "quota"
	default:
		return "generic"
	}
}

// UpstreamError is the terminal error of an upstream call after the retry
// budget is spent. Status preserves the upstream's own status string (e.g.
// "OVER_QUERY_LIMIT", "NOT_FOUND", "HTTP_500") for logs and debugging.
type UpstreamError struct {
	Kind   UpstreamKind
	Status string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("distance: upstream %s (%s): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("distance: upstream %s (%s)", e.Kind, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ValidationError reports which part of a request failed the input gate.
// Never retried, never reaches the upstream.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("distance: invalid %s: %s", e.Field, e.Reason)
}
