// Package http exposes the pipeline coordinator over HTTP.
//
// Routes are grouped per resource:
//
//	GET  /healthz                      liveness and queue statistics
//	GET  /api/processors               processor kinds and parameter definitions
//	GET  /api/datasets                 registered datasets
//	POST /api/datasets                 register a source file
//	GET  /api/datasets/{id}            one dataset
//	GET  /api/datasets/{id}/matrices   matrices a modification can target
//	POST /api/datasets/{id}/jobs       queue a processor run (202)
//	GET  /api/datasets/{id}/jobs       job history for a dataset
//	POST /api/datasets/{id}/preview    extraction preview, synchronous
//	GET  /api/jobs/{id}                job record
//	POST /api/jobs/{id}/cancel         cancel a pending job
//	GET  /api/jobs/{id}/events         WebSocket stream of progress and result events
//	GET  /metrics                      Prometheus scrape endpoint
//
// Failures are rendered as RFC 7807 problem documents. A finished processor
// run is always a 200 with a result envelope, whether or not it succeeded.
package http
