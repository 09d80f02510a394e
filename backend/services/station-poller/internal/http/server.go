package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeouts bound the ops API connections. Zero fields take the DefaultTimeouts value.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// DefaultTimeouts returns the limits used when config leaves them unset.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:     15 * time.Second,
		Write:    30 * time.Second,
		Idle:     60 * time.Second,
		Shutdown: 10 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Read <= 0 {
		t.Read = d.Read
	}
	if t.Write <= 0 {
		t.Write = d.Write
	}
	if t.Idle <= 0 {
		t.Idle = d.Idle
	}
	if t.Shutdown <= 0 {
		t.Shutdown = d.Shutdown
	}
	return t
}

// Server serves the ops API. Live feed connections are hijacked and manage their own deadlines.
type Server struct {
	server   *http.Server
	shutdown time.Duration
	logger   *zap.Logger
}

// NewServer builds HTTP server with provided handler.
func NewServer(addr string, handler http.Handler, timeouts Timeouts, logger *zap.Logger, middlewares ...func(http.Handler) http.Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	timeouts = timeouts.withDefaults()
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: timeouts.Read,
			ReadTimeout:       timeouts.Read,
			WriteTimeout:      timeouts.Write,
			IdleTimeout:       timeouts.Idle,
		},
		shutdown: timeouts.Shutdown,
		logger:   logger,
	}
}

// Timeouts reports the limits the server was built with.
func (s *Server) Timeouts() Timeouts {
	return Timeouts{
		Read:     s.server.ReadTimeout,
		Write:    s.server.WriteTimeout,
		Idle:     s.server.IdleTimeout,
		Shutdown: s.shutdown,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for at most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting ops api",
			zap.String("addr", s.server.Addr),
			zap.Duration("read_timeout", s.server.ReadTimeout),
			zap.Duration("write_timeout", s.server.WriteTimeout),
		)
		if err := s.server.ListenAndServe(); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("ops api shutdown incomplete", zap.Error(err))
			return err
		}
		s.logger.Info("ops api stopped")
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
