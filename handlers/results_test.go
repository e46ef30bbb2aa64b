// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/testutil"
)

func newResultsServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /polls/{pollID}/results", env.results.GetResults)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// readFrame reads one Server-Sent Event and decodes its data line.
func readFrame(t *testing.T, r *bufio.Reader) (string, models.ObserverMessage) {
	t.Helper()
	var event string
	var msg models.ObserverMessage
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read event stream: %v", err)
		}
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "":
			return event, msg
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
				t.Fatalf("Failed to decode event data: %v", err)
			}
		}
	}
}

func TestGetResultsSnapshot(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")

	if _, err := env.engine.SubmitVote(t.Context(), "voter-1", pollID, opts[0]); err != nil {
		t.Fatal(err)
	}

	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/polls/"+pollID+"/results", nil)
		req.SetPathValue("pollID", pollID)
		w := httptest.NewRecorder()

		env.results.GetResults(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)

		var msg models.ObserverMessage
		testutil.AssertJSON(t, w, &msg)
		if msg.Type != models.MessageSnapshot {
			t.Errorf("Expected snapshot, got %s", msg.Type)
		}
		if msg.Counts[opts[0]] != 1 || msg.Seq != 1 {
			t.Errorf("unexpected snapshot %+v", msg)
		}
	})

	t.Run("unknown poll", func(t *testing.T) {
		id := "3d0bb7de-5a5b-4b55-9d44-04c0e0b1f6aa"
		req := httptest.NewRequest("GET", "/polls/"+id+"/results", nil)
		req.SetPathValue("pollID", id)
		w := httptest.NewRecorder()

		env.results.GetResults(w, req)

		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("unknown poll stream", func(t *testing.T) {
		id := "3d0bb7de-5a5b-4b55-9d44-04c0e0b1f6aa"
		req := httptest.NewRequest("GET", "/polls/"+id+"/results", nil)
		req.SetPathValue("pollID", id)
		req.Header.Set("Accept", "text/event-stream")
		w := httptest.NewRecorder()

		env.results.GetResults(w, req)

		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestGetResultsSSE(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")
	server := newResultsServer(t, env)

	if _, err := env.engine.SubmitVote(t.Context(), "voter-1", pollID, opts[0]); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/polls/"+pollID+"/results", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got '%s'", ct)
	}

	reader := bufio.NewReader(resp.Body)

	event, msg := readFrame(t, reader)
	if event != models.MessageSnapshot || msg.Counts[opts[0]] != 1 || msg.Seq != 1 {
		t.Fatalf("unexpected snapshot %s %+v", event, msg)
	}

	// A switch arrives as decrement then increment
	if _, err := env.engine.SubmitVote(t.Context(), "voter-1", pollID, opts[1]); err != nil {
		t.Fatal(err)
	}

	event, msg = readFrame(t, reader)
	if event != models.MessageDelta || msg.OptionID != opts[0] || msg.Votes != 0 || msg.Seq != 2 {
		t.Errorf("unexpected first delta %s %+v", event, msg)
	}
	event, msg = readFrame(t, reader)
	if event != models.MessageDelta || msg.OptionID != opts[1] || msg.Votes != 1 || msg.Seq != 3 {
		t.Errorf("unexpected second delta %s %+v", event, msg)
	}
}

func TestGetResultsWebSocket(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, opts := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")
	server := newResultsServer(t, env)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/polls/" + pollID + "/results"
	conn, err := websocket.Dial(url, "", server.URL)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg models.ObserverMessage
	if err := websocket.JSON.Receive(conn, &msg); err != nil {
		t.Fatalf("Failed to receive snapshot: %v", err)
	}
	if msg.Type != models.MessageSnapshot || msg.Seq != 0 || len(msg.Counts) != 0 {
		t.Errorf("unexpected snapshot %+v", msg)
	}

	for i, voter := range []string{"voter-1", "voter-2"} {
		if _, err := env.engine.SubmitVote(t.Context(), voter, pollID, opts[0]); err != nil {
			t.Fatal(err)
		}

		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			t.Fatalf("Failed to receive delta: %v", err)
		}
		if msg.Type != models.MessageDelta || msg.OptionID != opts[0] {
			t.Errorf("unexpected delta %+v", msg)
		}
		if msg.Votes != int64(i+1) || msg.Seq != uint64(i+1) {
			t.Errorf("Expected votes %d seq %d, got %+v", i+1, i+1, msg)
		}
	}
}

func TestGetResultsWebSocketBadHandshake(t *testing.T) {
	env := setupHandlers(t, nil)
	pollID, _ := testutil.CreateTestPoll(t, env.db, "Lunch", "Pizza", "Tacos")
	server := newResultsServer(t, env)

	// Upgrade requests without Sec-WebSocket-Key are rejected by the handshake
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest("GET", server.URL+"/polls/"+pollID+"/results", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Connection", "Upgrade")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	}

	// Handler returns after writing the response; give it a moment
	deadline := time.Now().Add(time.Second)
	for env.hub.Subscribers(pollID) != 0 || env.hub.Topics() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected subscriptions to be released, got %d subscribers on %d topics",
				env.hub.Subscribers(pollID), env.hub.Topics())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetResultsWebSocketUnknownPoll(t *testing.T) {
	env := setupHandlers(t, nil)
	server := newResultsServer(t, env)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/polls/3d0bb7de-5a5b-4b55-9d44-04c0e0b1f6aa/results"
	if _, err := websocket.Dial(url, "", server.URL); err == nil {
		t.Fatal("Expected handshake to fail for an unknown poll")
	}
}
