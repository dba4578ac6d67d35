// Package api hosts the HTTP server, middleware, web UI and JSON handlers.
// Notable routes:
//   - GET / renders the search page.
//   - GET /api/search, /api/papers/{id}, /api/venues, /api/stats, /api/runs
//     and /api/arxiv serve JSON.
//   - POST /api/fetch queues a (venue, year) ingest; API-key guarded when
//     auth is enabled.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
