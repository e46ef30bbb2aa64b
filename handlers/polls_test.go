// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/hub"
	"github.com/danielhkuo/livepoll/ledger"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/registry"
	"github.com/danielhkuo/livepoll/tally"
	"github.com/danielhkuo/livepoll/testutil"
)

type testEnv struct {
	db       *sql.DB
	cfg      cliparse.Config
	registry *registry.Registry
	engine   *engine.Engine
	hub      *hub.Hub

	polls   *PollHandler
	voting  *VotingHandler
	results *ResultsHandler
}

func setupHandlers(t *testing.T, store engine.TallyStore) *testEnv {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	reg, err := registry.New(conn, nil, 0)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	if store == nil {
		store = tally.NewMemoryStore()
	}

	h := hub.New(hub.Options{GracePeriod: cfg.HubGracePeriod, Buffer: cfg.SubscriberBuffer})
	t.Cleanup(h.Close)

	eng := engine.New(engine.Dependencies{
		Ledger:   ledger.New(conn, nil),
		Tally:    store,
		Registry: reg,
		Hub:      h,
	})

	return &testEnv{
		db:       conn,
		cfg:      cfg,
		registry: reg,
		engine:   eng,
		hub:      h,
		polls:    NewPollHandler(reg, eng),
		voting:   NewVotingHandler(eng, cfg),
		results:  NewResultsHandler(eng, nil),
	}
}

func TestCreatePoll(t *testing.T) {
	env := setupHandlers(t, nil)

	testCases := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "valid poll",
			body:           models.CreatePollRequest{Title: "Lunch?", Options: []string{"Pizza", "Tacos", "Sushi"}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing title",
			body:           models.CreatePollRequest{Options: []string{"A", "B"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "one option",
			body:           models.CreatePollRequest{Title: "Lonely", Options: []string{"Only"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "blank option",
			body:           models.CreatePollRequest{Title: "Blank", Options: []string{"A", "  "}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "duplicate options",
			body:           models.CreatePollRequest{Title: "Dupes", Options: []string{"A", "A"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			body:           "not an object",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/polls", tc.body, nil)
			w := httptest.NewRecorder()

			env.polls.CreatePoll(w, req)

			testutil.AssertStatus(t, w, tc.expectedStatus)
			if tc.expectedStatus != http.StatusCreated {
				return
			}

			var resp models.CreatePollResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.PollID == "" {
				t.Fatal("Expected poll_id in response")
			}

			var count int
			err := env.db.QueryRow("SELECT COUNT(*) FROM poll_option WHERE poll_id = $1", resp.PollID).Scan(&count)
			if err != nil {
				t.Fatalf("Failed to count options: %v", err)
			}
			if count != 3 {
				t.Errorf("Expected 3 options, got %d", count)
			}
		})
	}
}

func TestGetPoll(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	// Two votes for Tacos
	for _, voter := range []string{"voter-1", "voter-2"} {
		if _, err := env.engine.SubmitVote(t.Context(), voter, pollID, opts[1]); err != nil {
			t.Fatalf("SubmitVote() error = %v", err)
		}
	}

	t.Run("with counts", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/polls/"+pollID, nil)
		req.SetPathValue("pollID", pollID)
		w := httptest.NewRecorder()

		env.polls.GetPoll(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.GetPollResponse
		testutil.AssertJSON(t, w, &resp)

		if resp.Poll.Poll.Title != "Lunch" {
			t.Errorf("Expected title 'Lunch', got '%s'", resp.Poll.Poll.Title)
		}
		if len(resp.Poll.Options) != 2 {
			t.Fatalf("Expected 2 options, got %d", len(resp.Poll.Options))
		}
		if resp.Poll.Options[0].Title != "Pizza" || resp.Poll.Options[0].Votes != 0 {
			t.Errorf("unexpected first option %+v", resp.Poll.Options[0])
		}
		if resp.Poll.Options[1].Title != "Tacos" || resp.Poll.Options[1].Votes != 2 {
			t.Errorf("unexpected second option %+v", resp.Poll.Options[1])
		}
		if resp.Seq != 2 {
			t.Errorf("Expected seq 2, got %d", resp.Seq)
		}
	})

	t.Run("unknown poll", func(t *testing.T) {
		id := "7f7c6c8e-0d0e-4c39-9a57-0d6f0f0b7c11"
		req := httptest.NewRequest("GET", "/polls/"+id, nil)
		req.SetPathValue("pollID", id)
		w := httptest.NewRecorder()

		env.polls.GetPoll(w, req)

		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/polls/not-a-uuid", nil)
		req.SetPathValue("pollID", "not-a-uuid")
		w := httptest.NewRecorder()

		env.polls.GetPoll(w, req)

		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}
