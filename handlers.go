package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"distance-api-go/logcolors"
	"distance-api-go/services/distance"
	"distance-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// getDistance resolves the three road distances for a moving quote: the move
// itself plus the two legs between the company base and each address.
func (a *app) getDistance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		Respond(w, r).Error(http.StatusMethodNotAllowed, "method_not_allowed", "Use POST with a JSON body")
		return
	}

	var body distanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, "validation_error", "Malformed JSON body")
		return
	}

	req := distance.Request{
		OriginAddress:      body.OriginAddress,
		DestinationAddress: body.DestinationAddress,
		ReferenceLatitude:  body.ReferenceLatitude,
		ReferenceLongitude: body.ReferenceLongitude,
	}

	// Fast-reject before any cache lookup or paid call.
	if err := distance.ValidateRequest(req); err != nil {
		var verr *distance.ValidationError
		if errors.As(err, &verr) {
			Respond(w, r).Error(http.StatusBadRequest, "validation_error", verr.Reason+" ("+verr.Field+")")
			return
		}
		Respond(w, r).Error(http.StatusBadRequest, "validation_error", "Invalid request")
		return
	}

	result, err := a.resolver.Resolve(r.Context(), req)
	if err != nil {
		a.writeResolveError(w, r, err)
		return
	}

	cacheStatus := "MISS"
	if result.Cached {
		cacheStatus = "HIT"
		stats.Get().RecordCacheHit()
	} else {
		stats.Get().RecordCacheMiss()
	}

	Respond(w, r).SetCacheStatus(cacheStatus).JSON(result)
}

// writeResolveError maps a resolution failure onto the documented status
// codes. Raw upstream error text is logged but only leaks into the response
// when the debug-errors flag is on.
func (a *app) writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	debugMessage := func(fallback string) string {
		if a.conf.FeatureFlags.DebugErrors {
			return err.Error()
		}
		return fallback
	}

	if errors.Is(err, distance.ErrMissingAPIKey) {
		log.Errorf("%s Resolution failed, API key missing (deployment defect)", logcolors.LogServer)
		Respond(w, r).Error(http.StatusInternalServerError, "configuration_error",
			"Distance resolution is not configured on this server")
		return
	}

	var uerr *distance.UpstreamError
	if errors.As(err, &uerr) {
		log.Errorf("%s Upstream failure (%s, %s): %v", logcolors.LogUpstream, uerr.Kind, uerr.Status, err)
		switch uerr.Kind {
		case distance.KindTimeout:
			Respond(w, r).Error(http.StatusGatewayTimeout, "upstream_timeout",
				debugMessage("The mapping service did not respond in time"))
		case distance.KindQuota:
			Respond(w, r).Error(http.StatusServiceUnavailable, "upstream_quota",
				debugMessage("The mapping service is throttling requests, try again later"))
		default:
			Respond(w, r).Error(http.StatusBadGateway, "upstream_error",
				debugMessage("The mapping service could not resolve the distance"))
		}
		return
	}

	log.Errorf("%s Unexpected resolution error: %v", logcolors.LogServer, err)
	Respond(w, r).Error(http.StatusInternalServerError, "internal_error",
		debugMessage("Unexpected internal error"))
}

// getHealthStatus reports liveness plus a couple of cheap internals.
func (a *app) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(healthResponse{
		Status:        "ok",
		UptimeSeconds: stats.Get().Snapshot().UptimeSeconds,
		CacheEntries:  a.cache.Len(),
		CircuitState:  a.breaker.State().String(),
	})
}

// getStats serves the counters snapshot.
func (a *app) getStats(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(stats.Get().Snapshot())
}

// cacheAuthorized gates the admin cache endpoints on the access token.
func (a *app) cacheAuthorized(w http.ResponseWriter, r *http.Request) bool {
	if a.conf.Configuration.CacheAccessToken == "" ||
		r.Header.Get("Authorization") != a.conf.Configuration.CacheAccessToken {
		Respond(w, r).Error(http.StatusUnauthorized, "unauthorized", "Invalid cache access token")
		return false
	}
	return true
}

// getCacheDump returns the full cache contents. Token gated.
func (a *app) getCacheDump(w http.ResponseWriter, r *http.Request) {
	if !a.cacheAuthorized(w, r) {
		return
	}

	dump := CacheDump(a.cache.Dump())
	size := 0
	for key := range dump {
		// key bytes plus the fixed-size entry (3 ints, bool, 2 timestamps)
		size += len(key) + 48
	}

	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: len(dump),
		SizeInKB:     size / 1024,
		Cache:        dump,
	})
}

// clearCache drops every cached resolution. Token gated.
func (a *app) clearCache(w http.ResponseWriter, r *http.Request) {
	if !a.cacheAuthorized(w, r) {
		return
	}

	removed := a.cache.Clear()
	log.Infof("%s Cleared %d entries", logcolors.LogCacheAdmin, removed)
	Respond(w, r).JSON(map[string]interface{}{
		"cleared": removed,
	})
}

// getCircuitBreakerStatus reports the breaker state for the upstream.
func (a *app) getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	state, failures, lastFailure := a.breaker.Stats()
	resp := map[string]interface{}{
		"state":     state.String(),
		"failures":  failures,
		"threshold": a.breaker.Threshold(),
	}
	if !lastFailure.IsZero() {
		resp["last_failure"] = lastFailure
		resp["retry_in_seconds"] = int(a.breaker.TimeUntilRetry().Seconds())
	}
	Respond(w, r).JSON(resp)
}

// resetCircuitBreaker forces the breaker closed. Token gated.
func (a *app) resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !a.cacheAuthorized(w, r) {
		return
	}

	a.breaker.Reset()
	Respond(w, r).JSON(map[string]interface{}{
		"state": a.breaker.State().String(),
	})
}

// helpHandler documents the API at the root path.
func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "POST /getDistance with {originAddress, destinationAddress, referenceLatitude, referenceLongitude} " +
			"and an 'Authorization: Bearer <token>' header. Returns the three road distances (km) used for the moving quote.",
	})
}
