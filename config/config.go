package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port     string `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

		// Distance Matrix API
		MapsAPIKey            string `envconfig:"MAPS_API_KEY" default:""`
		MapsBaseURL           string `envconfig:"MAPS_BASE_URL" default:"https://maps.googleapis.com/maps/api/distancematrix/json"`
		UpstreamMaxRetries    int    `envconfig:"UPSTREAM_MAX_RETRIES" default:"3"`
		UpstreamBaseDelayInMs int    `envconfig:"UPSTREAM_BASE_DELAY_IN_MS" default:"1000"`
		UpstreamTimeoutInMs   int    `envconfig:"UPSTREAM_TIMEOUT_IN_MS" default:"10000"`
		// Outbound shield: how fast we are willing to hit the paid API.
		UpstreamRatePerSecond int    `envconfig:"UPSTREAM_RATE_PER_SECOND" default:"10"`
		UpstreamBurst         int    `envconfig:"UPSTREAM_BURST" default:"10"`

		// Inbound fixed-window rate limit, per client IP
		RateLimitWindowInSeconds int `envconfig:"RATE_LIMIT_WINDOW_IN_SECONDS" default:"60"`
		RateLimitMaxRequests     int `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"100"`
		// Use X-Forwarded-For as the client identifier. Enable only when the
		// service sits behind a proxy that overwrites the header; otherwise
		// callers can rotate identifiers by spoofing it.
		TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

		// Distance cache
		DistanceCacheTTLInSeconds          int `envconfig:"DISTANCE_CACHE_TTL_IN_SECONDS" default:"86400"`
		CacheInvalidationIntervalInSeconds int `envconfig:"CACHE_INVALIDATION_INTERVAL_IN_SECONDS" default:"3600"`

		// Auth
		JWTSecret        string `envconfig:"JWT_SECRET" default:""`
		CacheAccessToken string `envconfig:"CACHE_ACCESS_TOKEN" default:""`

		// CORS allow-list, comma separated
		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"https://app.flyttofix.se,http://localhost:3000"`

		// Circuit breaker
		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"`

		// Stats persistence
		StatsDBPath                string `envconfig:"STATS_DB_PATH" default:"/data/stats.db"`
		StatsSaveIntervalInSeconds int    `envconfig:"STATS_SAVE_INTERVAL_IN_SECONDS" default:"300"`
	}

	FeatureFlags struct {
		// DebugErrors includes raw upstream error text in error responses.
		// Never enable in production.
		DebugErrors      bool `envconfig:"FF_DEBUG_ERRORS" default:"false"`
		StatsPersistence bool `envconfig:"FF_STATS_PERSISTENCE" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
