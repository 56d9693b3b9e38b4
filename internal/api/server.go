package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"arena-duel/internal/config"
	"arena-duel/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	cfg         config.ServerConfig

	stopChan chan struct{}
	stopOnce sync.Once
}

// statsInterval is how often limiter counters are mirrored into metrics.
const statsInterval = 5 * time.Second

// NewServer creates the API server.
//
// Background workers do not start until Start is called, so tests can
// construct a server and drive Router() directly.
func NewServer(engine *game.Engine, renderer FrameRenderer, cfg config.ServerConfig) *Server {
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Printf("⚠️ Ignoring invalid trusted proxies: %v", err)
	}

	limitCfg := DefaultRateLimitConfig
	limitCfg.TrustedProxies = trusted

	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(engine, cfg.CORSOrigins, trusted),
		rateLimiter: NewIPRateLimiter(limitCfg),
		cfg:         cfg,
		stopChan:    make(chan struct{}),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Renderer:    renderer,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start launches the hub, the broadcast loop and the listener. It blocks
// until the server stops and returns nil after a clean Stop.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.cfg.BroadcastInterval)
	go s.statsLoop(statsInterval)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	log.Printf("🌐 API server listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// statsLoop mirrors the request limiter counters into gauges until Stop.
func (s *Server) statsLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.publishStats()
		}
	}
}

func (s *Server) publishStats() {
	UpdateRateLimitStats(s.rateLimiter.GetStats())
}

// Stop shuts down the listener and background workers.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.publishStats()
	s.rateLimiter.Stop()
	s.wsHub.Stop()
	return s.httpServer.Shutdown(ctx)
}
