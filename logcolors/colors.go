package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"
)

// Cache-related log prefixes
const (
	LogCacheDistance = Green + "[Cache:Distance]" + Reset
	LogCacheSweep    = Blue + "[Cache:Sweep]" + Reset
	LogCacheAdmin    = Blue + "[Cache:Admin]" + Reset
)

// Rate limiting and auth log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAuth      = Purple + "[Auth]" + Reset
)

// Upstream / resolution log prefixes
const (
	LogUpstream = Cyan + "[Upstream]" + Reset
	LogRetry    = Cyan + "[Retry]" + Reset
	LogResolve  = Green + "[Resolve]" + Reset
)

// Server/Init log prefixes
const (
	LogServer  = Green + "[Server]" + Reset
	LogConfig  = Cyan + "[Config]" + Reset
	LogStats   = Blue + "[Stats]" + Reset
	LogRequest = Purple + "[Request]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}
