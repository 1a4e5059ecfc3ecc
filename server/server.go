package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	HTTP    *http.Server
	handler *Handler
}

// New はhandlerを /ws で公開するサーバを作成します。
func New(addr string, handler *Handler, gatherer prometheus.Gatherer) *Server {
	return &Server{
		HTTP: &http.Server{
			Addr:    addr,
			Handler: Route(handler, gatherer),
		},
		handler: handler,
	}
}

func (s *Server) Serve() error                 { return s.HTTP.ListenAndServe() }
func (s *Server) ServeOn(l net.Listener) error { return s.HTTP.Serve(l) }
func (s *Server) Close() error                 { return s.HTTP.Close() }
func (s *Server) Addr() string                 { return s.HTTP.Addr }

// Shutdown は新規接続の受け付けを止め、接続中のクライアントを正常にクローズします。
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTP.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return errors.Join(err, s.handler.Shutdown(ctx))
}
