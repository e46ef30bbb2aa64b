// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package observer

import (
	"context"
	"time"

	"golang.org/x/net/websocket"

	"github.com/danielhkuo/livepoll/models"
)

const DefaultWriteTimeout = 10 * time.Second

// WebSocketSink writes each message as one JSON text frame.
type WebSocketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn, writeTimeout: DefaultWriteTimeout}
}

func (s *WebSocketSink) Send(msg models.ObserverMessage) error {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return websocket.JSON.Send(s.conn, msg)
}

// Watch returns a context that is cancelled when the client goes away.
// Observers never send anything meaningful, so incoming frames are dropped.
func (s *WebSocketSink) Watch(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(s.conn, &discard); err != nil {
				return
			}
		}
	}()
	return ctx, cancel
}
