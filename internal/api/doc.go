// Package api exposes the REST surface for submitting analysis questions,
// tracking asynchronous task progress, and retrieving aggregate statistics.
// It hosts the HTTP server together with authentication middleware and
// Prometheus-style metrics endpoints.
package api
