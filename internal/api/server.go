package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"
)

// Server runs the hook handler on a local address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr so the caller learns about port conflicts before starting.
func Listen(addr string, h http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		ln: ln,
	}, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Serve() error {
	log.Printf("api: hook listening on %s", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
