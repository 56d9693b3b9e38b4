// Command tui runs a local two-player duel in the terminal.
//
//	go run ./cmd/tui
//	go run ./cmd/tui -seed 7 -log duel.log
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"arena-duel/internal/config"
	"arena-duel/internal/game"
	"arena-duel/internal/tui"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	seed := flag.Int64("seed", cfg.Arena.ResolveSeed(), "random seed for pickups")
	fps := flag.Int("fps", 30, "terminal redraws per second")
	logPath := flag.String("log", "", "write logs to this file (default: discard)")
	flag.Parse()

	// The terminal belongs to the view, so logs go to a file or nowhere.
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log %s: %v\n", *logPath, err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	arena := game.Arena{Width: float64(cfg.Arena.Width), Height: float64(cfg.Arena.Height)}
	match := game.NewMatch(arena, rand.New(rand.NewSource(*seed)))
	engine := game.NewEngine(match, game.EngineConfig{TickRate: cfg.Arena.TickRate})
	defer engine.Stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("🎮 Terminal duel: %dx%d arena, %d TPS, seed %d", cfg.Arena.Width, cfg.Arena.Height, cfg.Arena.TickRate, *seed)
	tui.NewView(screen, engine, *fps).Run(ctx)
}
