package api

import (
	"io"
	"net/http"
	"time"

	"arena-duel/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface is the slice of the tick driver the API calls.
// Tests substitute a mock so no tick loop has to run.
type EngineInterface interface {
	// GetSnapshot returns the latest published snapshot without locking
	GetSnapshot() *game.MatchSnapshot
	// Start begins an idle match
	Start() bool
	// Reset returns the match to idle
	Reset()
	// Toggle is the space-bar control: reset when finished, otherwise start
	Toggle() game.MatchState
	// ApplyIntent replaces a fighter's heading and guard
	ApplyIntent(id game.FighterID, in game.Intent) error
	// TickRate returns steps per second
	TickRate() int
}

// FrameRenderer draws a snapshot as a PNG image.
type FrameRenderer interface {
	RenderPNG(w io.Writer, snap *game.MatchSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the match driver (required)
	Engine EngineInterface

	// Renderer serves /api/frame.png. Nil disables the endpoint.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost is allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It starts no goroutines of its own and opens no listeners, so it is safe
// to wrap in httptest.NewServer. The only background work is the rate
// limiter cleanup loop when the limiter is created here.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting goes before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/config", h.handleGetConfig)
		r.Get("/frame.png", h.handleGetFrame)

		r.Route("/match", func(r chi.Router) {
			r.Post("/start", h.handleMatchStart)
			r.Post("/reset", h.handleMatchReset)
			r.Post("/toggle", h.handleMatchToggle)
		})

		r.Post("/intent", h.handleIntent)
	})

	return r
}

func corsOrigins(origins []string) []string {
	if origins != nil {
		return origins
	}
	return []string{
		"http://localhost:*",
		"http://127.0.0.1:*",
	}
}

// requestMetrics records latency per route pattern, never per raw path,
// so label cardinality stays bounded.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
