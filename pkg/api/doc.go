// Package api serves manifest parsing, checking and marker evaluation over
// HTTP.
//
// Routes:
//
//	GET  /healthz
//	POST /v1/parse              body: manifest text
//	POST /v1/check              body: [CheckRequest]
//	POST /v1/markers/evaluate   body: [EvaluateRequest]
//	GET  /v1/reports            ?limit=&manifest=
//	GET  /v1/reports/{id}
//
// Errors are returned as {"code": ..., "message": ...} with the HTTP status
// derived from the error code: INVALID_* maps to 400, *NOT_FOUND to 404 and
// everything else to 500.
package api
