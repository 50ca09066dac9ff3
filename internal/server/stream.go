package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
)

// streamMessage is one websocket frame of /battles/stream.
type streamMessage struct {
	Type    string `json:"type"` // "snapshot" | "error"
	Payload any    `json:"payload"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowOrigin(origin) != ""
		},
	}
}

// handleBattleStream pushes a snapshot on connect and after every refresh
// until the client goes away.
func (s *Server) handleBattleStream(c *gin.Context) {
	if s.deps.Battles == nil {
		writeError(c, http.StatusServiceUnavailable, "battle reads are not configured")
		return
	}
	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logFor(c).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sig, unsubscribe := s.deps.Battles.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// reader: only control frames are expected; any error ends the stream
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := s.logFor(c).WithField("remote_addr", c.Request.RemoteAddr)
	log.Debug("stream client connected")
	defer log.Debug("stream client disconnected")

	if !s.pushSnapshot(ctx, conn) {
		return
	}
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig.C():
			if !s.pushSnapshot(ctx, conn) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pushSnapshot reports false when the connection is no longer writable. A
// read failure is sent as an error frame and keeps the stream open.
func (s *Server) pushSnapshot(ctx context.Context, conn *websocket.Conn) bool {
	var msg streamMessage
	snap, err := s.deps.Battles.Snapshot(ctx)
	if err != nil {
		msg = streamMessage{Type: "error", Payload: gin.H{"error": err.Error(), "retry": true}}
	} else {
		msg = streamMessage{Type: "snapshot", Payload: snap}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(msg) == nil
}
