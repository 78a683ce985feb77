// Package metrics supplies the Prometheus-backed implementation of
// storage.Recorder plus a small health-check surface (HealthHandler,
// ReadyHandler, LivenessHandler) for embedding in a shell or daemon. The
// storage package depends only on its own storage.Recorder interface;
// nothing outside this package imports client_golang.
package metrics
