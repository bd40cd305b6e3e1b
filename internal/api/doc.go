// Package api hosts the status server that runs alongside a crawl.
// Routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the live run statistics.
package api
