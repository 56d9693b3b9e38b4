package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"arena-duel/internal/api"
	"arena-duel/internal/config"
	"arena-duel/internal/game"
	"arena-duel/internal/render"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ARENA DUEL")
	log.Println("🎮 ================================")

	appConfig := config.Load()
	arenaCfg := appConfig.Arena

	seed := arenaCfg.ResolveSeed()
	arena := game.Arena{Width: float64(arenaCfg.Width), Height: float64(arenaCfg.Height)}
	match := game.NewMatch(arena, rand.New(rand.NewSource(seed)))
	log.Printf("🎮 Config: %dx%d arena, %d TPS, seed %d", arenaCfg.Width, arenaCfg.Height, arenaCfg.TickRate, seed)

	var eventLog *game.EventLog
	if path := appConfig.EventLog.Path; path != "" {
		eventLog = game.NewEventLog()
		if err := eventLog.Start(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
			eventLog = nil
		} else {
			match.SetEventSink(eventLog)
			log.Printf("📝 Event log: %s", path)
		}
	}

	engine := game.NewEngine(match, game.EngineConfig{TickRate: arenaCfg.TickRate})
	engine.SetCallbacks(
		func(res game.TickResult, took time.Duration) {
			api.RecordTick(res, took)
			if eventLog != nil && res.Tick%uint64(arenaCfg.TickRate) == 0 {
				api.UpdateEventLogStats(eventLog.GetTotalCount(), eventLog.GetDroppedCount())
			}
		},
		api.RecordMatchFinished,
	)

	debugServer, err := api.StartDebugServer(appConfig.Observability)
	if err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	renderer := render.NewRenderer(appConfig.Render)
	server := api.NewServer(engine, renderer, appConfig.Server)

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("🌐 API:       http://localhost%s/api/state", addr)
		log.Printf("🖼️ Frame:     http://localhost%s/api/frame.png", addr)
		log.Printf("📡 WebSocket: ws://localhost%s/ws", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! POST /api/match/start or press SPACE in a client. Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	engine.Stop()
	if eventLog != nil {
		eventLog.Stop()
		log.Printf("📝 Event log closed (%d events, %d dropped)", eventLog.GetTotalCount(), eventLog.GetDroppedCount())
	}
	if err := debugServer.Stop(ctx); err != nil {
		log.Printf("⚠️ Debug server shutdown: %v", err)
	}
	log.Println("👋 Goodbye!")
}
