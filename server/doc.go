// Package server provides the unified HTTP server for dispatch, built on
// Gin with HTTP/2 (h2c) support so boot firmware can fetch payloads over
// cleartext HTTP/2.
//
// The server follows dispatch's component pattern with lifecycle management,
// operational endpoints, and a configurable middleware stack. The boot and
// beacon route sets are mounted on the same listener by their own packages
// via GinEngine().
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging (invariant
//     violations are re-raised so the process halts)
//   - RequestLogger: request logging with duration tracking
//   - Tracing: OpenTelemetry server spans
//   - CORS: cross-origin resource sharing configuration
//   - RequestID: request ID generation and propagation
//   - RateLimit: per-client sliding-window rate limiting
//   - BodySizeLimit: request body size limits
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: health check aggregation
//   - /info: application information
//   - /metrics: runtime memory and goroutine metrics
//   - /alive, /ready: liveness and readiness probes
//   - /version: build version information
package server
