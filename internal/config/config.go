// Package config provides centralized configuration management.
// This is the single source of truth for arena, server and render settings.
//
// Defaults mirror the classic two-player duel; every section can be
// overridden through environment variables (see *FromEnv).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds the simulation settings shared by the match and the driver.
type ArenaConfig struct {
	Width    int   // Arena width in pixels
	Height   int   // Arena height in pixels
	TickRate int   // Simulation steps per second
	Seed     int64 // Pickup RNG seed; 0 means seed from the clock
}

// DefaultArena returns the default arena configuration.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:    800,
		Height:   600,
		TickRate: 60,
		Seed:     0,
	}
}

// MinArenaSide is the smallest arena side that fits a full-health fighter.
// It matches the fighter base size.
const MinArenaSide = 100

// ArenaFromEnv returns arena configuration with environment variable overrides.
// Sides smaller than MinArenaSide and tick rates with no positive interval
// are ignored.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if w := getEnvInt("ARENA_WIDTH", 0); w >= MinArenaSide {
		cfg.Width = w
	}
	if h := getEnvInt("ARENA_HEIGHT", 0); h >= MinArenaSide {
		cfg.Height = h
	}
	if tps := getEnvInt("TICK_RATE", 0); validRate(tps) {
		cfg.TickRate = tps
	}
	if seed := getEnvInt64("ARENA_SEED", 0); seed != 0 {
		cfg.Seed = seed
	}

	return cfg
}

// ResolveSeed returns the configured seed, or a clock-derived one when unset.
func (c ArenaConfig) ResolveSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int
	BroadcastInterval time.Duration // WebSocket snapshot push interval
	CORSOrigins       []string
	TrustedProxies    []string // IPs or CIDRs allowed to set X-Forwarded-For
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		BroadcastInterval: time.Second / 30,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if hz := getEnvInt("BROADCAST_HZ", 0); validRate(hz) {
		cfg.BroadcastInterval = time.Second / time.Duration(hz)
	}
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS")
	cfg.TrustedProxies = getEnvList("TRUSTED_PROXIES")

	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig controls the PNG frame renderer.
type RenderConfig struct {
	Scale float64 // Output scale relative to arena pixels
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{Scale: 1.0}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()
	if s := getEnvFloat("RENDER_SCALE", 0); s > 0 {
		cfg.Scale = s
	}
	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the diagnostic JSONL event log.
type EventLogConfig struct {
	Path string // Empty disables the log
}

// EventLogFromEnv returns event log configuration with environment overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := EventLogConfig{Path: "events.jsonl"}
	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.Path = v
	}
	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the localhost debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string
}

// DefaultObservability returns the default debug server settings.
// The listener is loopback only.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns debug server settings with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Arena         ArenaConfig
	Server        ServerConfig
	Render        RenderConfig
	EventLog      EventLogConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Arena:         ArenaFromEnv(),
		Server:        ServerFromEnv(),
		Render:        RenderFromEnv(),
		EventLog:      EventLogFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// validRate reports whether a per-second rate yields a usable ticker interval.
func validRate(perSecond int) bool {
	return perSecond > 0 && time.Second/time.Duration(perSecond) > 0
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
