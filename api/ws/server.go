// Package ws streams trades and depth to WebSocket subscribers. Frames
// that a slow client cannot take are dropped; the engine and the other
// subscribers never wait.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"keel/service"
)

const (
	writeWait    = 5 * time.Second
	subBuffer    = 64
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	maxReadLimit = 512
)

type Server struct {
	svc      *service.OrderService
	tradeHub *hub[service.TradeEvent]
	depthHub *hub[service.DepthEvent]
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewServer(svc *service.OrderService, log *zap.Logger) *Server {
	return &Server{
		svc:      svc,
		tradeHub: newHub[service.TradeEvent](),
		depthHub: newHub[service.DepthEvent](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run pumps the service's event streams into the hubs until ctx ends.
func (s *Server) Run(ctx context.Context) {
	trades := s.svc.TradeEvents()
	depth := s.svc.DepthEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-trades:
			s.tradeHub.Broadcast(ev)
		case ev := <-depth:
			s.depthHub.Broadcast(ev)
		}
	}
}

// Register mounts the stream endpoints on m.
func (s *Server) Register(m *http.ServeMux) {
	m.HandleFunc("/ws/trades", handleStream(s, s.tradeHub))
	m.HandleFunc("/ws/depth", handleStream(s, s.depthHub))
}

func handleStream[T any](s *Server, h *hub[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("ws upgrade", zap.Error(err))
			return
		}
		sub := h.Subscribe(subBuffer)
		go writePump(conn, sub.ch, func() { h.Unsubscribe(sub) })
		go readPump(conn)
	}
}

// writePump serialises hub messages onto one connection and keeps it
// alive with pings.
func writePump[T any](conn *websocket.Conn, ch <-chan T, unsubscribe func()) {
	defer func() {
		unsubscribe()
		_ = conn.Close()
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains control frames so pongs are processed; clients are not
// expected to send data.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			_ = conn.Close()
			return
		}
	}
}
