// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

	mux.HandleFunc("POST /polls",
		middleware.WithLogging(middleware.WithMetrics(m, "POST /polls", handler)))

WithLogging logs method, path, client address, status and duration_ms once
the handler returns. WithMetrics counts requests and 5xx errors and observes
latency, labelled by endpoint, method and status.

Both wrap the ResponseWriter in a recorder that still implements
http.Flusher and http.Hijacker, so event streams and websocket upgrades work
behind them.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Echoes the request Origin and allows credentials so the session cookie is
sent cross-site.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

ParseJSONBody decodes request bodies up to MaxBodyBytes.

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Honours X-Forwarded-For and X-Real-IP. Used in request logs.
*/
package middleware
