package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server accepts connections on TCP and WebSocket and runs a Client for
// each one against the same handler and hub.
type Server struct {
	hub     *Hub
	handler EventHandler
	log     *zap.Logger

	upgrader websocket.Upgrader

	// One per served client; Shutdown waits on it.
	wg sync.WaitGroup
}

// NewServer ties the hub and handler together. Call ListenTCP, ServeTCP or
// mount ServeWS to start accepting.
func NewServer(hub *Hub, handler EventHandler, log *zap.Logger) *Server {
	return &Server{
		hub:     hub,
		handler: handler,
		log:     log,
		upgrader: websocket.Upgrader{
			// Any origin may connect; the server carries no transport security.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Hub returns the directory shared by every connection.
func (s *Server) Hub() *Hub { return s.hub }

// ListenTCP binds addr and serves until ctx is cancelled.
func (s *Server) ListenTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeTCP(ctx, ln)
}

// ServeTCP accepts on ln until ctx is cancelled or ln fails.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	s.log.Info("tcp listener started", zap.String("addr", ln.Addr().String()))
	// Closing the listener is the only way to unblock Accept.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.serve(NewTCPTransport(conn))
	}
}

// serve runs a client for t on its own goroutine.
func (s *Server) serve(t Transport) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Debug("connection opened", zap.String("remote", t.RemoteAddr()))
		NewClient(t, s.hub, s.log).Serve(s.handler)
	}()
}

// ServeWS upgrades the request and serves it as a client connection.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	s.serve(newWSTransport(conn))
}

// Shutdown closes every client and waits for their loops to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
