package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"arena-duel/internal/config"
	"arena-duel/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics. Labels are limited to fixed sets ("p1"/"p2", route patterns).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duel_tick_duration_seconds",
		Help:    "Time spent in one simulation step",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duel_ticks_total",
		Help: "Simulation steps executed",
	})

	damageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_damage_total",
		Help: "Damage taken, by fighter",
	}, []string{"fighter"})

	pickupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_pickups_total",
		Help: "Health pickups collected, by fighter",
	}, []string{"fighter"})

	matchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_matches_finished_total",
		Help: "Finished matches, by winner",
	}, []string{"winner"})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duel_render_duration_seconds",
		Help:    "Time spent rendering a frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duel_event_log_events",
		Help: "Events accepted by the event log",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duel_event_log_dropped",
		Help: "Events dropped by rate limiting or buffer overflow",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	rateLimitRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rate_limit_requests",
		Help: "Requests seen by the per-IP limiter, by result",
	}, []string{"result"}) // "allowed", "rejected"

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})
)

var fighterLabels = [2]string{"p1", "p2"}

// DebugServer serves pprof, /metrics and /health on a private address.
type DebugServer struct {
	srv *http.Server
}

// NewDebugHandler builds the debug mux.
func NewDebugHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartDebugServer starts the observability server in the background.
// Non-loopback addresses are refused; pprof must never face the internet.
// Returns nil, nil when disabled.
func StartDebugServer(cfg config.ObservabilityConfig) (*DebugServer, error) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil, nil
	}

	addr := cfg.ListenAddr
	if !isLoopback(addr) {
		log.Printf("⚠️ Debug server forced to localhost (requested %s)", addr)
		addr = config.DefaultObservability().ListenAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	ds := &DebugServer{srv: &http.Server{Handler: NewDebugHandler(), ReadHeaderTimeout: 5 * time.Second}}
	go func() {
		log.Printf("📊 Debug server on %s", ln.Addr())
		log.Printf("   - pprof:   http://%s/debug/pprof/", ln.Addr())
		log.Printf("   - metrics: http://%s/metrics", ln.Addr())
		if err := ds.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()
	return ds, nil
}

// Stop shuts the debug server down.
func (ds *DebugServer) Stop(ctx context.Context) error {
	if ds == nil {
		return nil
	}
	return ds.srv.Shutdown(ctx)
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// RecordTick records one simulation step. It matches the engine's onTick
// callback signature.
func RecordTick(res game.TickResult, took time.Duration) {
	tickDuration.Observe(took.Seconds())
	ticksTotal.Inc()
	for i, label := range fighterLabels {
		if res.Damage[i] > 0 {
			damageTotal.WithLabelValues(label).Add(float64(res.Damage[i]))
		}
		if res.Healed[i] {
			pickupsTotal.WithLabelValues(label).Inc()
		}
	}
}

// RecordMatchFinished counts a finished match. It matches the engine's
// onFinish callback signature.
func RecordMatchFinished(winner game.FighterID) {
	if !winner.Valid() {
		return
	}
	matchesFinished.WithLabelValues(fighterLabels[winner-1]).Inc()
}

// RecordRender records render timing.
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// UpdateEventLogStats mirrors the event log counters into gauges.
func UpdateEventLogStats(total, dropped uint64) {
	eventLogTotal.Set(float64(total))
	eventLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateRateLimitStats mirrors the request limiter counters into gauges.
func UpdateRateLimitStats(stats map[string]uint64) {
	for _, result := range []string{"allowed", "rejected"} {
		rateLimitRequests.WithLabelValues(result).Set(float64(stats[result]))
	}
}

// UpdateWSConnections sets the WebSocket connection gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one broadcast.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
