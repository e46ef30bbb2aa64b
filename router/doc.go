// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the livepoll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Services{
		Registry: reg,
		Engine:   eng,
		Config:   cfg,
		Metrics:  metrics.PromAPIMetrics(),
	})

# Endpoints

	GET    /health                 - Liveness
	GET    /metrics                - Prometheus exposition
	POST   /polls                  - Create poll
	GET    /polls/{pollID}         - Poll, options and counts
	POST   /polls/{pollID}/votes   - Vote or switch
	DELETE /polls/{pollID}/votes   - Retract
	GET    /polls/{pollID}/results - Live results

API routes are wrapped with request logging and request metrics labelled by
route pattern.
*/
package router
