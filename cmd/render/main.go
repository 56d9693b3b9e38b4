// Command render simulates a seeded duel headlessly and writes frames as PNG.
//
//	go run ./cmd/render -ticks 600 -seed 7 -out duel.png
//	go run ./cmd/render -ticks 600 -every 60 -out frames/duel.png
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"strings"

	"arena-duel/internal/config"
	"arena-duel/internal/game"
	"arena-duel/internal/render"
)

func main() {
	cfg := config.Load()

	ticks := flag.Int("ticks", 300, "simulation steps to run")
	seed := flag.Int64("seed", cfg.Arena.ResolveSeed(), "random seed for pickups and scripted input")
	out := flag.String("out", "frame.png", "output PNG path")
	every := flag.Int("every", 0, "also write a numbered frame every N ticks (0 = final frame only)")
	turnEvery := flag.Int("turn-every", 45, "ticks between scripted direction changes (0 = no input)")
	scale := flag.Float64("scale", cfg.Render.Scale, "output scale")
	workers := flag.Int("workers", 0, "PNG encoder goroutines (0 = one per CPU)")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	arena := game.Arena{Width: float64(cfg.Arena.Width), Height: float64(cfg.Arena.Height)}
	match := game.NewMatch(arena, rand.New(rand.NewSource(*seed)))
	pool := render.NewFramePool(render.NewRenderer(config.RenderConfig{Scale: *scale}), *workers)
	pool.Start()

	match.Start()
	intents := []game.Intent{game.IntentUp, game.IntentDown, game.IntentLeft, game.IntentRight}

	for i := 1; i <= *ticks; i++ {
		if *turnEvery > 0 && i%*turnEvery == 0 {
			id := game.FighterID(rng.Intn(2) + 1)
			if err := match.ApplyIntent(id, intents[rng.Intn(len(intents))]); err != nil {
				log.Printf("⚠️ tick %d: %v", i, err)
			}
		}

		res := match.Tick()
		if *every > 0 && i%*every == 0 {
			submitFrame(pool, numbered(*out, i), match)
		}
		if res.Finished {
			log.Printf("🏆 %s wins at tick %d", res.Winner, res.Tick)
			break
		}
	}

	submitFrame(pool, *out, match)
	if err := pool.Wait(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	snap := match.Snapshot()
	log.Printf("✅ Tick %d, state %s, P1 %d HP, P2 %d HP, %d frames",
		snap.TickNumber, snap.State, snap.Fighters[0].Health, snap.Fighters[1].Health, pool.Saved())
}

func submitFrame(pool *render.FramePool, path string, match *game.Match) {
	snap := match.Snapshot()
	pool.Submit(path, &snap)
}

// numbered turns "dir/duel.png" into "dir/duel_0060.png".
func numbered(path string, tick int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%04d%s", strings.TrimSuffix(path, ext), tick, ext)
}
