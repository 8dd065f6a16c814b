// Package server exposes the engine over HTTP.
//
// Routes:
//
//	GET    /api/health             liveness and uptime
//	POST   /api/chat               one chat turn; Server-Sent Events when "stream" is true
//	POST   /api/ingest             ingest a URL; queued as a job when "async" is true
//	GET    /api/ingest/jobs        list ingestion jobs
//	GET    /api/ingest/jobs/{id}   job status
//	DELETE /api/ingest/jobs/{id}   cancel a job
//	GET    /api/leads              list leads, newest first
//	POST   /api/leads              create a lead
//	GET    /api/index/stats        record counts per tenant
//
// JSON responses share one envelope: {"success": bool, "message": string, "data": any}.
// A streamed chat response is a sequence of "data: <event>\n\n" frames where
// each event carries a "type" of "chunk", "done" or "error".
package server
