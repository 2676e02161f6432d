// Package observability provides structured logging, Prometheus metrics, and
// health checks for the gatekeeping layer.
//
// Logging uses stdlib slog with a JSON handler. Metrics cover HTTP traffic,
// authorization decisions, and rate limit outcomes, including a dedicated
// counter for fallback activations so operators can see when rate limiting is
// running degraded.
package observability
