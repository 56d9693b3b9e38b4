// Package render draws match snapshots as still frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"arena-duel/internal/config"
	"arena-duel/internal/game"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Palette. Fighters keep their classic colors: emerald for P1, amber for P2.
var (
	BackgroundColor = color.RGBA{17, 24, 39, 255}
	GridColor       = color.RGBA{255, 255, 255, 26}
	BorderColor     = color.RGBA{99, 102, 241, 255}
	StripeColor     = color.RGBA{220, 38, 38, 255}
	PickupColor     = color.RGBA{59, 130, 246, 255}
	BarTrackColor   = color.RGBA{31, 41, 55, 255}
	OverlayColor    = color.RGBA{0, 0, 0, 190}
	TextColor       = color.RGBA{255, 255, 255, 255}
	HintColor       = color.RGBA{156, 163, 175, 255}

	FighterColors = [2]color.RGBA{
		{16, 185, 129, 255},
		{245, 158, 11, 255},
	}
)

const (
	stripeWidth  = 8.0
	cornerRadius = 6.0
	gridSpacing  = 20.0
	barWidth     = 192.0
	barHeight    = 16.0
	hudMargin    = 16.0
)

// Renderer draws snapshots with gg. It holds no per-frame state and is
// safe for concurrent use.
type Renderer struct {
	scale float64
}

// NewRenderer creates a renderer. A non-positive scale means 1.
func NewRenderer(cfg config.RenderConfig) *Renderer {
	scale := cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	return &Renderer{scale: scale}
}

// Scale returns the output pixels per arena unit.
func (r *Renderer) Scale() float64 {
	return r.scale
}

// Render draws one frame.
func (r *Renderer) Render(snap *game.MatchSnapshot) image.Image {
	return r.draw(snap).Image()
}

// RenderPNG draws one frame and encodes it as PNG.
func (r *Renderer) RenderPNG(w io.Writer, snap *game.MatchSnapshot) error {
	if err := r.draw(snap).EncodePNG(w); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// SavePNG draws one frame into a file.
func (r *Renderer) SavePNG(path string, snap *game.MatchSnapshot) error {
	if err := r.draw(snap).SavePNG(path); err != nil {
		return fmt.Errorf("save frame %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) draw(snap *game.MatchSnapshot) *gg.Context {
	arena := snap.Arena
	if arena.Width <= 0 || arena.Height <= 0 {
		arena = game.DefaultArena
	}

	w := int(math.Round(arena.Width * r.scale))
	h := int(math.Round(arena.Height * r.scale))
	dc := gg.NewContext(w, h)
	dc.Scale(r.scale, r.scale)
	dc.SetFontFace(basicfont.Face7x13)

	drawBackground(dc, arena)
	drawPickup(dc, snap.Pickup)
	for i, f := range snap.Fighters {
		drawFighter(dc, f.Fighter, FighterColors[i])
	}
	drawHUD(dc, snap, arena)

	switch snap.State {
	case game.Idle:
		drawIdleOverlay(dc, arena)
	case game.Finished:
		drawFinishedOverlay(dc, arena, snap.WinnerName)
	}
	return dc
}

func drawBackground(dc *gg.Context, arena game.Arena) {
	dc.SetColor(BackgroundColor)
	dc.DrawRectangle(0, 0, arena.Width, arena.Height)
	dc.Fill()

	dc.SetColor(GridColor)
	for x := gridSpacing / 2; x < arena.Width; x += gridSpacing {
		for y := gridSpacing / 2; y < arena.Height; y += gridSpacing {
			dc.DrawRectangle(x, y, 1, 1)
		}
	}
	dc.Fill()

	dc.SetColor(BorderColor)
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, arena.Width-2, arena.Height-2)
	dc.Stroke()
}

func drawPickup(dc *gg.Context, p game.Pickup) {
	c := p.Center()
	dc.SetColor(PickupColor)
	dc.DrawCircle(c.X, c.Y, game.PickupRadius)
	dc.Fill()
}

// drawFighter paints the body, then guard stripes on the edge pair given
// by the orientation.
func drawFighter(dc *gg.Context, f game.Fighter, body color.RGBA) {
	x, y, s := f.Position.X, f.Position.Y, f.Size

	dc.SetColor(color.RGBA{0, 0, 0, 90})
	dc.DrawRoundedRectangle(x+3, y+4, s, s, cornerRadius)
	dc.Fill()

	dc.SetColor(body)
	dc.DrawRoundedRectangle(x, y, s, s, cornerRadius)
	dc.Fill()

	dc.SetColor(StripeColor)
	if f.Orientation == game.Horizontal {
		dc.DrawRoundedRectangle(x, y, s, stripeWidth, stripeWidth/2)
		dc.DrawRoundedRectangle(x, y+s-stripeWidth, s, stripeWidth, stripeWidth/2)
	} else {
		dc.DrawRoundedRectangle(x, y, stripeWidth, s, stripeWidth/2)
		dc.DrawRoundedRectangle(x+s-stripeWidth, y, stripeWidth, s, stripeWidth/2)
	}
	dc.Fill()
}

func drawHUD(dc *gg.Context, snap *game.MatchSnapshot, arena game.Arena) {
	left := hudMargin
	right := arena.Width - hudMargin - barWidth

	for i, fs := range snap.Fighters {
		x, ax := left, 0.0
		if i == 1 {
			x, ax = right, 1.0
		}
		name := fs.Name
		if name == "" {
			name = game.FighterID(i + 1).String()
		}

		dc.SetColor(FighterColors[i])
		dc.DrawStringAnchored(name, x+ax*barWidth, hudMargin+6, ax, 0.5)

		barY := hudMargin + 16
		dc.SetColor(BarTrackColor)
		dc.DrawRoundedRectangle(x, barY, barWidth, barHeight, barHeight/2)
		dc.Fill()

		fill := barWidth * float64(fs.Health) / game.MaxHealth
		if fill > 0 {
			dc.SetColor(FighterColors[i])
			dc.DrawRoundedRectangle(x, barY, fill, barHeight, barHeight/2)
			dc.Fill()
		}
	}

	if snap.State == game.Running {
		dc.SetColor(HintColor)
		dc.DrawStringAnchored("Player 1: WASD    Player 2: Arrow Keys", arena.Width/2, arena.Height-hudMargin, 0.5, 0.5)
	}
}

func drawOverlay(dc *gg.Context, arena game.Arena) {
	dc.SetColor(OverlayColor)
	dc.DrawRectangle(0, 0, arena.Width, arena.Height)
	dc.Fill()
}

func drawIdleOverlay(dc *gg.Context, arena game.Arena) {
	drawOverlay(dc, arena)
	cx, cy := arena.Width/2, arena.Height/2

	dc.SetColor(TextColor)
	dc.DrawStringAnchored("BATTLE GAME", cx, cy-40, 0.5, 0.5)
	dc.DrawStringAnchored("Press SPACE to start", cx, cy, 0.5, 0.5)

	dc.SetColor(FighterColors[0])
	dc.DrawStringAnchored("Player 1: WASD", cx-80, cy+40, 0.5, 0.5)
	dc.SetColor(FighterColors[1])
	dc.DrawStringAnchored("Player 2: Arrow Keys", cx+80, cy+40, 0.5, 0.5)
}

func drawFinishedOverlay(dc *gg.Context, arena game.Arena, winner string) {
	drawOverlay(dc, arena)
	cx, cy := arena.Width/2, arena.Height/2

	dc.SetColor(TextColor)
	dc.DrawStringAnchored(winner+" Wins!", cx, cy-20, 0.5, 0.5)
	dc.SetColor(HintColor)
	dc.DrawStringAnchored("Press SPACE to play again", cx, cy+20, 0.5, 0.5)
}
