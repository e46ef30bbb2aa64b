// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
)

const (
	SessionCookieName = "sessionId"
	SessionMaxAge     = 30 * 24 * time.Hour
)

type VotingHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewVotingHandler(eng *engine.Engine, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{engine: eng, cfg: cfg}
}

// SubmitVote handles POST /polls/{pollID}/votes
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDFromPath(w, r)
	if !ok {
		return
	}

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PollOptionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_option_id is required")
		return
	}
	if err := uuid.Validate(req.PollOptionID); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_option_id must be a UUID")
		return
	}

	// First vote from this browser gets a new identity
	voterID, found := h.voterFromCookie(r)
	if !found {
		token, err := auth.GenerateVoterToken()
		if err != nil {
			slog.Error("failed to generate voter token", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit vote")
			return
		}
		if err := h.setSessionCookie(w, token); err != nil {
			slog.Error("failed to sign session", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit vote")
			return
		}
		voterID = token
	}

	res, err := h.engine.SubmitVote(r.Context(), voterID, pollID, req.PollOptionID)
	if err != nil {
		writeEngineError(w, err, pollID)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitVoteResponse{
		SessionID: voterID,
		Vote:      res.Vote,
		State:     res.State,
	})
}

// RetractVote handles DELETE /polls/{pollID}/votes
func (h *VotingHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDFromPath(w, r)
	if !ok {
		return
	}

	voterID, found := h.voterFromCookie(r)
	if !found {
		middleware.ErrorResponse(w, http.StatusNotFound, "No active vote on this poll")
		return
	}

	res, err := h.engine.RetractVote(r.Context(), voterID, pollID)
	if err != nil {
		writeEngineError(w, err, pollID)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SubmitVoteResponse{
		SessionID: voterID,
		State:     res.State,
	})
}

// voterFromCookie returns the voter id carried by a valid session cookie.
// Missing or tampered cookies count as no session.
func (h *VotingHandler) voterFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	token, err := auth.VerifySession(cookie.Value, h.cfg.SessionSecret)
	if err != nil {
		slog.Warn("rejected session cookie", "error", err, "remote", middleware.GetClientIP(r))
		return "", false
	}
	return token, true
}

func (h *VotingHandler) setSessionCookie(w http.ResponseWriter, token string) error {
	value, err := auth.SignSession(token, h.cfg.SessionSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error, pollID string) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll or option not found")
	case errors.Is(err, engine.ErrNoActiveVote):
		middleware.ErrorResponse(w, http.StatusNotFound, "No active vote on this poll")
	case errors.Is(err, engine.ErrDuplicateVote):
		middleware.ErrorResponse(w, http.StatusConflict, "You have already voted for this option")
	case errors.Is(err, engine.ErrTallyUpdate):
		// The vote is recorded; the tally catches up on reconciliation.
		w.Header().Set("Retry-After", "1")
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Vote recorded but live counts are catching up")
	default:
		slog.Error("vote request failed", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process vote")
	}
}
