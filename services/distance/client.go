package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"distance-api-go/circuitbreaker"
	"distance-api-go/logcolors"
	"distance-api-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// httpMaxIdleConns is the maximum number of idle (keep-alive) connections
	// kept in the transport pool.
	httpMaxIdleConns = 10

	// httpIdleConnTimeout is how long an idle connection is kept in the pool
	// before being closed.
	httpIdleConnTimeout = 30 * time.Second

	travelMode = "driving"
)

// ErrMissingAPIKey means the service was deployed without an upstream API
// key. Surfaced as a configuration error (500), never retried.
var ErrMissingAPIKey = errors.New("distance: maps API key not configured")

// Client calls a Distance Matrix style API for a single origin/destination
// pair. Every call goes through an outbound rate limiter (shielding the paid
// API from our own bursts) and a circuit breaker (failing fast when the
// upstream is known to be down).
type Client struct {
	apiKey     string
	httpClient *http.Client
	// apiURL is the Distance Matrix endpoint. Overrideable in tests.
	apiURL  string
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

// ClientConfig holds upstream client configuration.
type ClientConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration // transport-level cap per HTTP call
	RatePerSecond int           // outbound requests per second toward the upstream
	Burst         int
	Breaker       *circuitbreaker.CircuitBreaker // optional
}

// NewClient creates a Distance Matrix client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RatePerSecond
	}

	transport := &http.Transport{
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdleConns,
		IdleConnTimeout:     httpIdleConnTimeout,
	}
	return &Client{
		apiKey: cfg.APIKey,
		apiURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: cfg.Breaker,
	}
}

// LegDistance resolves the road distance in meters between one origin and
// one destination. Either endpoint may be a postal address or a "lat,lon"
// waypoint string. A non-OK envelope, a non-OK element status, or an OK
// element with no numeric distance are all errors, never a zero distance.
func (c *Client) LegDistance(ctx context.Context, origin, destination string) (int, error) {
	if c.apiKey == "" {
		return 0, ErrMissingAPIKey
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return 0, &UpstreamError{Kind: KindQuota, Status: "CIRCUIT_OPEN", Err: circuitbreaker.ErrCircuitOpen}
	}

	stats.Get().RecordUpstreamAttempt()
	meters, err := c.callAPI(ctx, origin, destination)
	if err != nil {
		stats.Get().RecordUpstreamFailure()
	}
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return meters, err
}

// callAPI performs the actual HTTP call to the Distance Matrix API.
func (c *Client) callAPI(ctx context.Context, origin, destination string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, &UpstreamError{Kind: KindTimeout, Status: "OUTBOUND_LIMIT", Err: err}
	}

	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", destination)
	q.Set("mode", travelMode)
	q.Set("units", "metric")
	q.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, &UpstreamError{Kind: KindGeneric, Status: "REQUEST", Err: fmt.Errorf("distance: create request: %w", err)}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return 0, &UpstreamError{Kind: KindTimeout, Status: "DEADLINE_EXCEEDED", Err: err}
		}
		return 0, &UpstreamError{Kind: KindGeneric, Status: "TRANSPORT", Err: err}
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, &UpstreamError{Kind: KindGeneric, Status: "READ", Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		kind := KindGeneric
		if httpResp.StatusCode == http.StatusTooManyRequests {
			kind = KindQuota
		}
		return 0, &UpstreamError{
			Kind:   kind,
			Status: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
			Err:    fmt.Errorf("distance: upstream status %d: %s", httpResp.StatusCode, string(respBytes)),
		}
	}

	var apiResp matrixResponse
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return 0, &UpstreamError{Kind: KindGeneric, Status: "MALFORMED", Err: fmt.Errorf("distance: unmarshal response: %w", err)}
	}

	if apiResp.Status != "OK" {
		kind := KindGeneric
		if quotaStatus(apiResp.Status) {
			kind = KindQuota
		}
		return 0, &UpstreamError{
			Kind:   kind,
			Status: apiResp.Status,
			Err:    fmt.Errorf("distance: envelope status %q: %s", apiResp.Status, apiResp.ErrorMessage),
		}
	}

	if len(apiResp.Rows) == 0 || len(apiResp.Rows[0].Elements) == 0 {
		return 0, &UpstreamError{Kind: KindGeneric, Status: "EMPTY_MATRIX", Err: errors.New("distance: no elements in response")}
	}

	element := apiResp.Rows[0].Elements[0]
	if element.Status != "OK" {
		return 0, &UpstreamError{
			Kind:   KindGeneric,
			Status: element.Status,
			Err:    fmt.Errorf("distance: element status %q for %s -> %s", element.Status, origin, destination),
		}
	}

	// An OK element with no distance field is a failure, not zero km.
	if element.Distance == nil {
		return 0, &UpstreamError{Kind: KindGeneric, Status: "MISSING_DISTANCE", Err: errors.New("distance: element has no distance value")}
	}
	if element.Distance.Value < 0 {
		return 0, &UpstreamError{Kind: KindGeneric, Status: "NEGATIVE_DISTANCE", Err: fmt.Errorf("distance: negative distance %d", element.Distance.Value)}
	}

	log.Debugf("%s %s -> %s: %dm", logcolors.LogUpstream, origin, destination, element.Distance.Value)
	return element.Distance.Value, nil
}

// quotaStatus reports whether an envelope status string is a quota /
// throttling signal from the upstream.
func quotaStatus(status string) bool {
	switch status {
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT", "RESOURCE_EXHAUSTED":
		return true
	}
	return false
}

// isTimeout reports whether err comes from a fired deadline, either ours or
// the transport's.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// --- JSON types for the Distance Matrix API ---

type matrixResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Rows         []matrixRow `json:"rows"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Status   string       `json:"status"`
	Distance *matrixValue `json:"distance"`
	Duration *matrixValue `json:"duration"`
}

type matrixValue struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}
