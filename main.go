package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distance-api-go/cache"
	"distance-api-go/circuitbreaker"
	"distance-api-go/config"
	"distance-api-go/logcolors"
	"distance-api-go/middleware"
	"distance-api-go/services/distance"
	"distance-api-go/stats"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// publicPaths are reachable without a bearer token. The cache and
// circuit-breaker admin endpoints carry their own access-token gate.
var publicPaths = []string{"/", "/health", "/stats", "/cache*", "/circuit-breaker*"}

// app holds the explicitly-injected shared state: the cache, the rate
// limiter and the resolver are constructed once here and passed by
// reference, never reached through globals, so tests can build fresh
// instances per case.
type app struct {
	conf     config.Config
	cache    *cache.Cache
	limiter  *middleware.FixedWindowLimiter
	breaker  *circuitbreaker.CircuitBreaker
	resolver *distance.Resolver
}

func newApp(conf config.Config) *app {
	c := conf.Configuration

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      "distance-matrix",
		Threshold: c.CircuitBreakerThreshold,
		Cooldown:  time.Duration(c.CircuitBreakerCooldownSecs) * time.Second,
	})

	client := distance.NewClient(distance.ClientConfig{
		APIKey:        c.MapsAPIKey,
		BaseURL:       c.MapsBaseURL,
		Timeout:       time.Duration(c.UpstreamTimeoutInMs) * time.Millisecond,
		RatePerSecond: c.UpstreamRatePerSecond,
		Burst:         c.UpstreamBurst,
		Breaker:       breaker,
	})

	distanceCache := cache.New(time.Duration(c.DistanceCacheTTLInSeconds) * time.Second)

	resolver := distance.NewResolver(client, distanceCache, distance.RetryConfig{
		MaxRetries:     c.UpstreamMaxRetries,
		BaseDelay:      time.Duration(c.UpstreamBaseDelayInMs) * time.Millisecond,
		AttemptTimeout: time.Duration(c.UpstreamTimeoutInMs) * time.Millisecond,
	})

	return &app{
		conf:  conf,
		cache: distanceCache,
		limiter: middleware.NewFixedWindowLimiter(
			c.RateLimitMaxRequests,
			time.Duration(c.RateLimitWindowInSeconds)*time.Second,
		),
		breaker:  breaker,
		resolver: resolver,
	}
}

// handler builds the full middleware chain around the router:
// request ID -> stats -> rate limit -> CORS -> logging -> auth -> routes.
// The rate limiter runs before everything expensive so abusive traffic is
// counted even when it would fail validation or auth.
func (a *app) handler() http.Handler {
	router := mux.NewRouter()
	a.setupRoutes(router)

	authed := middleware.BearerAuth(a.conf.Configuration.JWTSecret, publicPaths)(router)
	logged := middleware.LoggingMiddleware(authed)

	c := cors.New(cors.Options{
		AllowedOrigins:   a.conf.Configuration.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	corsHandler := c.Handler(logged)

	limited := middleware.RateLimit(corsHandler, a.limiter, a.conf.Configuration.TrustProxyHeaders)

	return middleware.WithRequestID(statsMiddleware(limited))
}

// statsMiddleware records per-request counters and response times.
func statsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		s := stats.Get()
		s.RecordRequest(r.URL.Path)
		s.RecordStatus(rec.Status)
		s.RecordResponseTime(time.Since(start))
		if rec.Status == http.StatusTooManyRequests {
			s.RecordRateLimit("rejected")
		} else {
			s.RecordRateLimit("allowed")
		}
	})
}

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
}

func main() {
	conf := config.Get()
	c := conf.Configuration

	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if c.MapsAPIKey == "" {
		log.Warnf("%s MAPS_API_KEY not set, distance resolution will fail with a configuration error", logcolors.LogConfig)
	}
	if c.JWTSecret == "" {
		log.Warnf("%s JWT_SECRET not set, /getDistance will reject every request", logcolors.LogConfig)
	}

	a := newApp(conf)

	var store *stats.Store
	if conf.FeatureFlags.StatsPersistence {
		var err error
		store, err = stats.NewStore(c.StatsDBPath)
		if err != nil {
			log.Warnf("%s Stats persistence disabled: %v", logcolors.LogStats, err)
		} else {
			if err := store.Load(); err != nil {
				log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
			}
			store.Run(time.Duration(c.StatsSaveIntervalInSeconds) * time.Second)
		}
	}

	sweeperStop := make(chan struct{})
	go a.cache.StartSweeper(time.Duration(c.CacheInvalidationIntervalInSeconds)*time.Second, sweeperStop)

	srv := &http.Server{
		Addr:    ":" + c.Port,
		Handler: a.handler(),
	}

	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, c.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s Server error: %v", logcolors.LogServer, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("%s Shutting down", logcolors.LogServer)
	close(sweeperStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("%s Shutdown error: %v", logcolors.LogServer, err)
	}

	if store != nil {
		if err := store.Close(); err != nil {
			log.Errorf("%s Stats store close error: %v", logcolors.LogStats, err)
		}
	}
}
