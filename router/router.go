// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/handlers"
	"github.com/danielhkuo/livepoll/metrics"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/registry"
)

// Services are the dependencies shared by every route.
type Services struct {
	Registry *registry.Registry
	Engine   *engine.Engine
	Config   cliparse.Config
	Logger   *slog.Logger
	Metrics  *metrics.APIMetrics
}

func NewRouter(s Services) *http.ServeMux {
	if s.Metrics == nil {
		s.Metrics = metrics.NopAPIMetrics()
	}
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(s.Registry, s.Engine)
	votingHandler := handlers.NewVotingHandler(s.Engine, s.Config)
	resultsHandler := handlers.NewResultsHandler(s.Engine, s.Logger)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithLogging(middleware.WithMetrics(s.Metrics, pattern, h)))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Polls
	handle("POST /polls", pollHandler.CreatePoll)
	handle("GET /polls/{pollID}", pollHandler.GetPoll)

	// Voting
	handle("POST /polls/{pollID}/votes", votingHandler.SubmitVote)
	handle("DELETE /polls/{pollID}/votes", votingHandler.RetractVote)

	// Live results
	handle("GET /polls/{pollID}/results", resultsHandler.GetResults)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("livepoll API v1"))
	})

	return mux
}
