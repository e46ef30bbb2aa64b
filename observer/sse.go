// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package observer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielhkuo/livepoll/models"
)

var ErrStreamingUnsupported = errors.New("http: can't do chunked response")

// SSESink writes messages as Server-Sent Events. The event name is the
// message type and the event id is its sequence number.
type SSESink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSESink checks w can be flushed. Headers are written on the first Send.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &SSESink{writer: w, flusher: flusher}, nil
}

func (s *SSESink) Send(msg models.ObserverMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if !s.started {
		h := s.writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.writer.WriteHeader(http.StatusOK)
		s.started = true
	}

	if _, err := fmt.Fprintf(s.writer, "id: %d\nevent: %s\ndata: %s\n\n", msg.Seq, msg.Type, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
