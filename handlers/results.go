// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/hub"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/observer"
)

type ResultsHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewResultsHandler(eng *engine.Engine, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsHandler{engine: eng, logger: logger}
}

// GetResults handles GET /polls/{pollID}/results
//
// A websocket upgrade or an Accept: text/event-stream request gets a live
// stream (a snapshot, then a delta per count change). Anything else gets the
// current snapshot as JSON.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDFromPath(w, r)
	if !ok {
		return
	}

	switch {
	case isWebSocketUpgrade(r):
		h.streamWebSocket(w, r, pollID)
	case acceptsEventStream(r):
		h.streamSSE(w, r, pollID)
	default:
		snap, err := h.engine.Tally(r.Context(), pollID)
		if err != nil {
			h.writeObserveError(w, err, pollID)
			return
		}
		middleware.JSONResponse(w, http.StatusOK, models.SnapshotMessage(snap))
	}
}

func (h *ResultsHandler) streamWebSocket(w http.ResponseWriter, r *http.Request, pollID string) {
	// Open before upgrading so unknown polls still get a plain 404.
	obs, err := h.engine.OpenPollObserver(r.Context(), pollID)
	if err != nil {
		h.writeObserveError(w, err, pollID)
		return
	}
	// A rejected handshake never reaches Handler. Close is idempotent.
	defer obs.Subscription.Close()

	server := websocket.Server{
		// Cross-origin observers are allowed, as with CORS.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			sink := observer.NewWebSocketSink(conn)
			ctx, cancel := sink.Watch(r.Context())
			defer cancel()

			h.logger.Info("observer connected", "poll_id", pollID, "transport", "websocket")
			if err := observer.NewSession(h.engine, pollID, sink, h.logger).Run(ctx, obs); err != nil {
				h.logger.Info("observer disconnected", "poll_id", pollID, "error", err)
			}
		},
	}
	server.ServeHTTP(w, r)
}

func (h *ResultsHandler) streamSSE(w http.ResponseWriter, r *http.Request, pollID string) {
	sink, err := observer.NewSSESink(w)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	obs, err := h.engine.OpenPollObserver(r.Context(), pollID)
	if err != nil {
		h.writeObserveError(w, err, pollID)
		return
	}

	h.logger.Info("observer connected", "poll_id", pollID, "transport", "sse")
	if err := observer.NewSession(h.engine, pollID, sink, h.logger).Run(r.Context(), obs); err != nil {
		h.logger.Info("observer disconnected", "poll_id", pollID, "error", err)
	}
}

func (h *ResultsHandler) writeObserveError(w http.ResponseWriter, err error, pollID string) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
	case errors.Is(err, engine.ErrInvalidInput):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hub.ErrClosed):
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Server is shutting down")
	default:
		h.logger.Error("failed to open observation", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to read results")
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
