// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/registry"
)

type PollHandler struct {
	registry *registry.Registry
	engine   *engine.Engine
}

func NewPollHandler(reg *registry.Registry, eng *engine.Engine) *PollHandler {
	return &PollHandler{registry: reg, engine: eng}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.registry.CreatePoll(r.Context(), req.Title, req.Options)
	switch {
	case errors.Is(err, registry.ErrInvalidPoll),
		errors.Is(err, registry.ErrTooFewOptions),
		errors.Is(err, registry.ErrDuplicateTitle):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID: poll.Poll.ID,
	})
}

// GetPoll handles GET /polls/{pollID}
// Returns the poll with each option's current vote count.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDFromPath(w, r)
	if !ok {
		return
	}

	poll, err := h.registry.GetPoll(r.Context(), pollID)
	if errors.Is(err, registry.ErrPollNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	snap, err := h.engine.Tally(r.Context(), pollID)
	if err != nil {
		slog.Error("failed to read tally", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to read tally")
		return
	}

	for i := range poll.Options {
		poll.Options[i].Votes = snap.Counts[poll.Options[i].ID]
	}

	middleware.JSONResponse(w, http.StatusOK, models.GetPollResponse{
		Poll: poll,
		Seq:  snap.Seq,
	})
}

// pollIDFromPath reads and validates the {pollID} path value, writing a 400
// when it is not a UUID.
func pollIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	pollID := r.PathValue("pollID")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return "", false
	}
	if err := uuid.Validate(pollID); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id must be a UUID")
		return "", false
	}
	return pollID, true
}
