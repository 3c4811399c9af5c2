package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// handleSubscribe pushes the document and its online participants over a
// websocket until either side goes away or the document is deleted.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	code := codeParam(r)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	docs, stopDocs, err := s.sessions.Subscribe(ctx, code)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer stopDocs()
	online, stopOnline, err := s.participants.SubscribeOnline(ctx, code)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer stopOnline()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "code", code, "error", err)
		return
	}
	defer conn.Close()

	log := s.logger.With("op", "subscribe", "code", code)
	log.Debug("subscriber connected")

	// Reading is only needed to notice the peer closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg Message) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug("subscriber write failed", "error", err)
			return false
		}
		return true
	}
	closed := func() {
		if ctx.Err() != nil {
			return
		}
		send(Message{Type: MessageClosed})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(writeWait))
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("subscriber disconnected")
			return
		case doc, ok := <-docs:
			if !ok {
				closed()
				return
			}
			if !send(Message{Type: MessageSession, Session: &doc}) {
				return
			}
		case list, ok := <-online:
			if !ok {
				closed()
				return
			}
			if !send(Message{Type: MessageParticipants, Participants: list}) {
				return
			}
		}
	}
}
