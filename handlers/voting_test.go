// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/tally"
	"github.com/danielhkuo/livepoll/testutil"
)

// brokenTally fails every increment.
type brokenTally struct {
	*tally.MemoryStore
}

func (brokenTally) Increment(context.Context, string, string, int64) (int64, error) {
	return 0, errors.New("tally store unavailable")
}

func submitVote(env *testEnv, pollID, optionID string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("POST", "/polls/"+pollID+"/votes", models.SubmitVoteRequest{PollOptionID: optionID}, nil)
	req.SetPathValue("pollID", pollID)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	env.voting.SubmitVote(w, req)
	return w
}

func retractVote(env *testEnv, pollID string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("DELETE", "/polls/"+pollID+"/votes", nil)
	req.SetPathValue("pollID", pollID)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	env.voting.RetractVote(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("Expected session cookie to be set")
	return nil
}

func TestSubmitVote(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	// First vote mints a session
	w := submitVote(env, pollID, opts[0], nil)
	testutil.AssertStatus(t, w, http.StatusCreated)

	cookie := sessionCookie(t, w)
	if !cookie.HttpOnly {
		t.Error("Expected session cookie to be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("Expected cookie path '/', got '%s'", cookie.Path)
	}
	if cookie.MaxAge != 30*24*60*60 {
		t.Errorf("Expected 30 day max age, got %d", cookie.MaxAge)
	}

	var resp models.SubmitVoteResponse
	testutil.AssertJSON(t, w, &resp)

	voterID, err := auth.VerifySession(cookie.Value, testutil.TestSessionSecret)
	if err != nil {
		t.Fatalf("Cookie does not verify: %v", err)
	}
	if resp.SessionID != voterID {
		t.Errorf("Expected session_id %s, got %s", voterID, resp.SessionID)
	}
	if resp.Vote == nil || resp.Vote.OptionID != opts[0] {
		t.Errorf("unexpected vote %+v", resp.Vote)
	}
	if resp.State.Transition != models.TransitionCreated || resp.State.State != models.StateVoted {
		t.Errorf("unexpected state %+v", resp.State)
	}

	t.Run("same option again is a conflict", func(t *testing.T) {
		w := submitVote(env, pollID, opts[0], cookie)
		testutil.AssertStatus(t, w, http.StatusConflict)
	})

	t.Run("different option switches", func(t *testing.T) {
		w := submitVote(env, pollID, opts[1], cookie)
		testutil.AssertStatus(t, w, http.StatusCreated)

		var resp models.SubmitVoteResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.State.Transition != models.TransitionSwitched {
			t.Errorf("Expected switched, got %s", resp.State.Transition)
		}
		if resp.State.PreviousOptionID != opts[0] || resp.State.OptionID != opts[1] {
			t.Errorf("unexpected state %+v", resp.State)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Error("Expected no new cookie for an existing session")
		}
	})

	snap, err := env.engine.Tally(t.Context(), pollID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Counts[opts[0]] != 0 || snap.Counts[opts[1]] != 1 {
		t.Errorf("unexpected counts %v", snap.Counts)
	}
}

func TestSubmitVoteErrors(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")
	_, otherOpts := testutil.CreateTestPoll(t, env.db, "Dinner", "Soup", "Salad")

	testCases := []struct {
		name           string
		pollID         string
		optionID       string
		expectedStatus int
	}{
		{"option from another poll", pollID, otherOpts[0], http.StatusNotFound},
		{"unknown option", pollID, "0b7a2f44-6a4e-4f0c-8d0e-57d3e6f1a9b2", http.StatusNotFound},
		{"unknown poll", "0b7a2f44-6a4e-4f0c-8d0e-57d3e6f1a9b3", opts[0], http.StatusNotFound},
		{"malformed option", pollID, "nope", http.StatusBadRequest},
		{"missing option", pollID, "", http.StatusBadRequest},
		{"malformed poll", "nope", opts[0], http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := submitVote(env, tc.pollID, tc.optionID, nil)
			testutil.AssertStatus(t, w, tc.expectedStatus)
		})
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM vote").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected no votes recorded, got %d", count)
	}
}

func TestSubmitVoteTamperedCookie(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	w := submitVote(env, pollID, opts[0], nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	cookie := sessionCookie(t, w)

	// A forged signature is treated as a new voter
	forged := &http.Cookie{Name: SessionCookieName, Value: cookie.Value + "x"}
	w = submitVote(env, pollID, opts[0], forged)
	testutil.AssertStatus(t, w, http.StatusCreated)

	fresh := sessionCookie(t, w)
	if fresh.Value == cookie.Value {
		t.Error("Expected a new session for a forged cookie")
	}
}

func TestSubmitVoteTallyFailure(t *testing.T) {
	env := setupHandlers(t, brokenTally{tally.NewMemoryStore()})
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	w := submitVote(env, pollID, opts[0], nil)

	testutil.AssertStatus(t, w, http.StatusServiceUnavailable)
	if ra := w.Header().Get("Retry-After"); ra != "1" {
		t.Errorf("Expected Retry-After 1, got '%s'", ra)
	}

	// The ledger still has the vote
	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM vote WHERE poll_id = $1", pollID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 recorded vote, got %d", count)
	}
	if !env.engine.Dirty(pollID) {
		t.Error("Expected poll to be queued for reconciliation")
	}
}

func TestRetractVote(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	t.Run("without session", func(t *testing.T) {
		w := retractVote(env, pollID, nil)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	w := submitVote(env, pollID, opts[1], nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	cookie := sessionCookie(t, w)

	w = retractVote(env, pollID, cookie)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.SubmitVoteResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.State.State != models.StateUnvoted || resp.State.PreviousOptionID != opts[1] {
		t.Errorf("unexpected state %+v", resp.State)
	}

	t.Run("second retract", func(t *testing.T) {
		w := retractVote(env, pollID, cookie)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("vote again after retract", func(t *testing.T) {
		w := submitVote(env, pollID, opts[1], cookie)
		testutil.AssertStatus(t, w, http.StatusCreated)
	})
}

// TestConcurrentVoters sends many first votes at once and checks the counts
// match the ledger
func TestConcurrentVoters(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos", "Sushi")

	numVoters := 30
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			w := submitVote(env, pollID, opts[idx%len(opts)], nil)
			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful votes, got %d", numVoters, successCount.Load())
	}

	snap, err := env.engine.Tally(t.Context(), pollID)
	if err != nil {
		t.Fatal(err)
	}
	for _, opt := range opts {
		if snap.Counts[opt] != 10 {
			t.Errorf("Expected 10 votes for %s, got %d", opt, snap.Counts[opt])
		}
	}
	if snap.Seq != uint64(numVoters) {
		t.Errorf("Expected seq %d, got %d", numVoters, snap.Seq)
	}
}

// TestConcurrentSameSession replays one session's vote in parallel; exactly
// one request records it
func TestConcurrentSameSession(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	token, err := auth.GenerateVoterToken()
	if err != nil {
		t.Fatal(err)
	}
	value, err := auth.SignSession(token, testutil.TestSessionSecret)
	if err != nil {
		t.Fatal(err)
	}
	cookie := &http.Cookie{Name: SessionCookieName, Value: value}

	var created, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch submitVote(env, pollID, opts[0], cookie).Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 created, got %d", created.Load())
	}
	if conflicts.Load() != 9 {
		t.Errorf("Expected 9 conflicts, got %d", conflicts.Load())
	}
}
