package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSPath is the websocket endpoint.
const WSPath = "/ws"

// WSServer accepts websocket clients and attaches them to the same hub as
// the TCP server.
type WSServer struct {
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	hub      *Hub
	log      *zap.Logger
}

func NewWSServer(bindAddr string, hub *Hub, log *zap.Logger) (*WSServer, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &WSServer{
		listener: ln,
		hub:      hub,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, s.handle)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s, nil
}

func (s *WSServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(MaxFrameSize)
	s.hub.attach(&wsConn{conn: conn})
}

// Serve runs the HTTP server until Shutdown.
func (s *WSServer) Serve() {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("websocket server stopped", zap.Error(err))
	}
}

// Shutdown stops accepting new websocket clients. Hijacked connections are
// closed through the hub.
func (s *WSServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *WSServer) Addr() net.Addr {
	return s.listener.Addr()
}
