package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kubegate/kubegate/internal/config"
	"github.com/kubegate/kubegate/internal/logging"
	"github.com/kubegate/kubegate/internal/metrics"
)

// Server wires the gateway pipeline into HTTP listeners: the public
// proxy listener and a separate admin listener for metrics and
// liveness.
type Server struct {
	gateway     *Gateway
	store       *config.Store
	collector   *metrics.Collector
	httpServer  *http.Server
	adminServer *http.Server
	watcher     *config.Watcher
	startTime   time.Time
}

// NewServer creates a gateway server. configPath may be empty when the
// configuration came from the environment only; file watching is then
// disabled.
func NewServer(cfg *config.Config, configPath string) (*Server, error) {
	store := config.NewStore(cfg.Resolve())
	collector := metrics.NewCollector()
	gw := New(store, collector)

	s := &Server{
		gateway:   gw,
		store:     store,
		collector: collector,
		startTime: time.Now(),
	}

	snap := store.Snapshot()
	s.httpServer = &http.Server{
		Addr:        snap.Listen,
		Handler:     gw.Handler(),
		IdleTimeout: 120 * time.Second,
		// No ReadTimeout/WriteTimeout: proxied exec and log streams
		// stay open indefinitely.
	}
	if snap.Admin != "" {
		s.adminServer = &http.Server{
			Addr:         snap.Admin,
			Handler:      s.adminHandler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath)
		if err != nil {
			return nil, err
		}
		watcher.OnChange(store.Swap)
		s.watcher = watcher
	}

	return s, nil
}

// adminHandler serves metrics and liveness on the admin listener.
func (s *Server) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": Version,
			"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		})
	})
	return mux
}

// Start starts the listeners without blocking.
func (s *Server) Start() error {
	errCh := make(chan error, 2)

	go func() {
		logging.Info("starting gateway listener", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.adminServer != nil {
		go func() {
			logging.Info("starting admin listener", zap.String("addr", s.adminServer.Addr))
			if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			return err
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		// Give listeners a moment to bind
	}
	return nil
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down gracefully")
	return s.Shutdown(30 * time.Second)
}

// Shutdown stops the listeners, waiting up to timeout for in-flight
// requests to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			logging.Error("admin server shutdown error", zap.Error(err))
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	logging.Info("server shutdown complete")
	return nil
}
