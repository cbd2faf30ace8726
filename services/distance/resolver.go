package distance

import (
	"context"
	"math"
	"sync"
	"time"

	"distance-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Store abstracts the TTL cache the resolver reads before calling the
// upstream and writes after a successful resolution. An interface so tests
// can swap in a double without timers.
type Store interface {
	// Get returns the cached result for key, or found=false when there is
	// no live (non-expired) entry.
	Get(key string) (Result, bool)

	// Put overwrites any entry for key with a fresh TTL.
	Put(key string, value Result)
}

// MatrixClient is the single upstream operation the resolver needs.
type MatrixClient interface {
	LegDistance(ctx context.Context, origin, destination string) (int, error)
}

// Resolver orchestrates one distance resolution: cache lookup, three-leg
// concurrent fan-out through the retry executor, unit conversion, cache
// write. It holds no per-request state between calls.
type Resolver struct {
	client MatrixClient
	store  Store
	retry  RetryConfig
}

// NewResolver creates a Resolver. The store and client are injected so tests
// can construct fresh instances per case.
func NewResolver(client MatrixClient, store Store, retry RetryConfig) *Resolver {
	return &Resolver{client: client, store: store, retry: retry}
}

// leg indexes into the fan-out result slice.
const (
	legMoving = iota
	legBaseToStart
	legBaseToEnd
	legCount
)

var legNames = [legCount]string{"moving", "baseToStart", "baseToEnd"}

// Resolve returns the three road distances for req.
//
// A live cache entry is the only early return. Otherwise all three legs are
// issued concurrently, each individually wrapped in the retry executor; the
// slowest leg bounds the latency. Any failed leg voids the whole resolution
// (a quote built from two real distances and one missing one would be
// silently wrong), and nothing is cached on failure.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if err := ValidateRequest(req); err != nil {
		return Result{}, err
	}

	key := req.CacheKey()
	if cached, found := r.store.Get(key); found {
		log.Infof("%s Cache hit for %s -> %s", logcolors.LogCacheDistance, req.OriginAddress, req.DestinationAddress)
		cached.Cached = true
		return cached, nil
	}

	base := FormatPoint(req.ReferenceLatitude, req.ReferenceLongitude)
	pairs := [legCount][2]string{
		legMoving:      {req.OriginAddress, req.DestinationAddress},
		legBaseToStart: {base, req.OriginAddress},
		legBaseToEnd:   {base, req.DestinationAddress},
	}

	var (
		wg     sync.WaitGroup
		meters [legCount]int
		errs   [legCount]error
	)
	for i := 0; i < legCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			origin, destination := pairs[i][0], pairs[i][1]
			meters[i], errs[i] = executeWithRetry(ctx, r.retry, legNames[i], func(ctx context.Context) (int, error) {
				return r.client.LegDistance(ctx, origin, destination)
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			log.Errorf("%s Leg %s failed: %v", logcolors.LogResolve, legNames[i], err)
			return Result{}, err
		}
	}

	result := Result{
		MovingDistanceKm:      roundKm(meters[legMoving]),
		BaseToStartDistanceKm: roundKm(meters[legBaseToStart]),
		BaseToEndDistanceKm:   roundKm(meters[legBaseToEnd]),
		Cached:                false,
		CalculatedAt:          time.Now().UTC(),
	}
	r.store.Put(key, result)
	log.Infof("%s Resolved %s -> %s: moving=%dkm baseToStart=%dkm baseToEnd=%dkm",
		logcolors.LogResolve, req.OriginAddress, req.DestinationAddress,
		result.MovingDistanceKm, result.BaseToStartDistanceKm, result.BaseToEndDistanceKm)
	return result, nil
}

// roundKm converts meters to whole kilometers, rounding half up:
// 12499m -> 12km, 12500m -> 13km.
func roundKm(meters int) int {
	return int(math.Floor(float64(meters)/1000.0 + 0.5))
}
