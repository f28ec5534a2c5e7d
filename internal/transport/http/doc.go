// Package http implements the CasePulse HTTP handlers: the dashboard page,
// the JSON data API, health endpoints and client log ingestion.
//
// Handlers stay thin. They bind and validate query parameters, call a
// service, and render JSON with go-chi/render. Every error goes through
// errors.ErrorHandler and reaches the client as an RFC 7807 problem:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "Request validation failed",
//	    "instance": "/api/data/table"
//	}
//
// Routes mounted by the application:
//
//	GET  /                          dashboard page
//	GET  /api/data/summary          card totals
//	GET  /api/data/states           per-state counts for ?status=
//	GET  /api/data/chart            Plotly figure for ?status=
//	GET  /api/data/table            state table for ?status=&sort=&order=
//	GET  /api/data/cases            paged case rows
//	GET  /api/data/statuses         dropdown options
//	GET  /api/data/export/{format}  csv or xlsx download
//	POST /api/data/reload           re-read the case file
//	POST /api/log                   browser log forwarding
//	GET  /api/health[/ready|/live]  health checks
//	GET  /api/version               build information
package http
