package distance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memStore is a minimal Store double without TTL behavior.
type memStore struct {
	mu      sync.Mutex
	entries map[string]Result
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]Result)}
}

func (s *memStore) Get(key string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[key]
	return r, ok
}

func (s *memStore) Put(key string, value Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	s.puts++
}

// fakeClient returns canned meters per origin|destination pair and counts calls.
type fakeClient struct {
	mu     sync.Mutex
	meters map[string]int
	errs   map[string]error
	calls  atomic.Int64
	// inFlight tracks peak concurrency to verify the fan-out.
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	delay       time.Duration
}

func (f *fakeClient) LegDistance(ctx context.Context, origin, destination string) (int, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if current <= max || f.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := origin + "|" + destination
	if err, ok := f.errs[key]; ok {
		return 0, err
	}
	return f.meters[key], nil
}

var testRequest = Request{
	OriginAddress:      "Storgatan 1, Stockholm",
	DestinationAddress: "Avenyn 2, Göteborg",
	ReferenceLatitude:  57.7089,
	ReferenceLongitude: 11.9746,
}

func testFakeClient() *fakeClient {
	base := FormatPoint(testRequest.ReferenceLatitude, testRequest.ReferenceLongitude)
	return &fakeClient{
		meters: map[string]int{
			testRequest.OriginAddress + "|" + testRequest.DestinationAddress: 47000,
			base + "|" + testRequest.OriginAddress:                           1200,
			base + "|" + testRequest.DestinationAddress:                      900,
		},
		errs: make(map[string]error),
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     1,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestResolve_FreshResolution(t *testing.T) {
	client := testFakeClient()
	store := newMemStore()
	resolver := NewResolver(client, store, fastRetry())

	result, err := resolver.Resolve(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	if result.MovingDistanceKm != 47 {
		t.Errorf("Expected movingDistance 47, got %d", result.MovingDistanceKm)
	}
	if result.BaseToStartDistanceKm != 1 {
		t.Errorf("Expected baseToStartDistance 1, got %d", result.BaseToStartDistanceKm)
	}
	if result.BaseToEndDistanceKm != 1 {
		t.Errorf("Expected baseToEndDistance 1, got %d", result.BaseToEndDistanceKm)
	}
	if result.Cached {
		t.Error("Expected cached=false on fresh resolution")
	}
	if result.CalculatedAt.IsZero() {
		t.Error("Expected calculatedAt to be set")
	}
	if got := client.calls.Load(); got != 3 {
		t.Errorf("Expected exactly 3 upstream calls, got %d", got)
	}
	if store.puts != 1 {
		t.Errorf("Expected one cache write, got %d", store.puts)
	}
}

func TestResolve_SecondCallServedFromCache(t *testing.T) {
	client := testFakeClient()
	store := newMemStore()
	resolver := NewResolver(client, store, fastRetry())

	first, err := resolver.Resolve(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("First resolve failed: %v", err)
	}

	second, err := resolver.Resolve(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}

	if !second.Cached {
		t.Error("Expected cached=true on second resolve")
	}
	if second.MovingDistanceKm != first.MovingDistanceKm ||
		second.BaseToStartDistanceKm != first.BaseToStartDistanceKm ||
		second.BaseToEndDistanceKm != first.BaseToEndDistanceKm {
		t.Error("Expected identical distances from cache")
	}
	if got := client.calls.Load(); got != 3 {
		t.Errorf("Expected upstream call count to stay at 3, got %d", got)
	}
}

func TestResolve_LegsRunConcurrently(t *testing.T) {
	client := testFakeClient()
	client.delay = 30 * time.Millisecond
	resolver := NewResolver(client, newMemStore(), fastRetry())

	start := time.Now()
	if _, err := resolver.Resolve(context.Background(), testRequest); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	elapsed := time.Since(start)

	if client.maxInFlight.Load() != 3 {
		t.Errorf("Expected 3 legs in flight at once, peak was %d", client.maxInFlight.Load())
	}
	// Sequential legs would take at least 90ms.
	if elapsed >= 90*time.Millisecond {
		t.Errorf("Expected fan-out latency bounded by the slowest leg, took %v", elapsed)
	}
}

func TestResolve_OneFailedLegVoidsResolution(t *testing.T) {
	client := testFakeClient()
	base := FormatPoint(testRequest.ReferenceLatitude, testRequest.ReferenceLongitude)
	client.errs[base+"|"+testRequest.DestinationAddress] = &UpstreamError{Kind: KindGeneric, Status: "NOT_FOUND"}
	store := newMemStore()
	resolver := NewResolver(client, store, fastRetry())

	_, err := resolver.Resolve(context.Background(), testRequest)
	if err == nil {
		t.Fatal("Expected error when one leg fails")
	}
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if store.puts != 0 {
		t.Error("Expected no cache write after a failed resolution")
	}
	if _, found := store.Get(testRequest.CacheKey()); found {
		t.Error("Expected no cache entry for the failed key")
	}
}

func TestResolve_InvalidRequestNeverCallsUpstream(t *testing.T) {
	client := testFakeClient()
	resolver := NewResolver(client, newMemStore(), fastRetry())

	bad := testRequest
	bad.DestinationAddress = " "
	_, err := resolver.Resolve(context.Background(), bad)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if got := client.calls.Load(); got != 0 {
		t.Errorf("Expected zero upstream calls for invalid input, got %d", got)
	}
}

func TestRoundKm(t *testing.T) {
	tests := []struct {
		meters   int
		expected int
	}{
		{12345, 12},
		{12499, 12},
		{12500, 13},
		{12501, 13},
		{0, 0},
		{499, 0},
		{500, 1},
		{1000, 1},
	}

	for _, tt := range tests {
		if got := roundKm(tt.meters); got != tt.expected {
			t.Errorf("roundKm(%d) = %d, want %d", tt.meters, got, tt.expected)
		}
	}
}
