// Package tui plays a duel in the terminal: both fighters share one
// keyboard, WASD for P1 and the arrow keys for P2.
package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"strings"
	"time"

	"arena-duel/internal/game"
	"arena-duel/internal/render"

	"github.com/gdamore/tcell/v2"
)

// Controller is the part of the engine the view drives.
type Controller interface {
	GetSnapshot() *game.MatchSnapshot
	Toggle() game.MatchState
	ApplyIntent(id game.FighterID, in game.Intent) error
}

const (
	fieldTop    = 1 // HUD line above the arena
	fieldBottom = 1 // status line below it
	pickupRune  = '●'
	healthCells = 10
)

var (
	backgroundStyle = tcell.StyleDefault.Background(rgb(render.BackgroundColor))
	stripeStyle     = tcell.StyleDefault.Background(rgb(render.StripeColor))
	pickupStyle     = backgroundStyle.Foreground(rgb(render.PickupColor))
	textStyle       = tcell.StyleDefault.Foreground(rgb(render.TextColor))
	hintStyle       = tcell.StyleDefault.Foreground(rgb(render.HintColor))
	fighterStyles   = [2]tcell.Style{
		tcell.StyleDefault.Background(rgb(render.FighterColors[0])),
		tcell.StyleDefault.Background(rgb(render.FighterColors[1])),
	}
)

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// View draws snapshots to a tcell screen and turns key presses into intents.
type View struct {
	screen tcell.Screen
	engine Controller
	fps    int
}

// NewView binds an initialized screen to a controller. An fps that is not
// positive, or too high for a ticker, means 30 redraws per second.
func NewView(screen tcell.Screen, engine Controller, fps int) *View {
	if fps <= 0 || time.Second/time.Duration(fps) <= 0 {
		fps = 30
	}
	return &View{screen: screen, engine: engine, fps: fps}
}

// Run redraws at the view's frame rate and handles input until Escape,
// Ctrl-C or ctx is done.
func (v *View) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(v.fps))
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				// Screen finalized.
				return
			}
			select {
			case eventChan <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	v.Draw(v.engine.GetSnapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eventChan:
			if !v.HandleEvent(ev) {
				return
			}
		case <-ticker.C:
			v.Draw(v.engine.GetSnapshot())
		}
	}
}

// HandleEvent applies one terminal event. It returns false when the
// player asked to quit.
func (v *View) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		v.handleKey(keyName(ev))

	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *View) handleKey(name string) {
	if name == "" {
		return
	}
	if game.IsToggleKey(name) {
		state := v.engine.Toggle()
		log.Printf("🎮 Toggle -> %s", state)
		return
	}

	id, intent, ok := game.IntentForKey(name)
	if !ok {
		return
	}
	if err := v.engine.ApplyIntent(id, intent); err != nil && !errors.Is(err, game.ErrMatchNotRunning) {
		log.Printf("⚠️ Intent for %s rejected: %v", id, err)
	}
}

// keyName converts a terminal key to the browser-style name the key
// bindings use.
func keyName(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyUp:
		return "ArrowUp"
	case tcell.KeyDown:
		return "ArrowDown"
	case tcell.KeyLeft:
		return "ArrowLeft"
	case tcell.KeyRight:
		return "ArrowRight"
	case tcell.KeyRune:
		return string(ev.Rune())
	}
	return ""
}

// layout maps arena coordinates onto terminal cells.
type layout struct {
	cols, rows int
	arena      game.Arena
}

func (l layout) cell(p game.Vector2) (col, row int) {
	col = int(p.X / l.arena.Width * float64(l.cols))
	row = fieldTop + int(p.Y/l.arena.Height*float64(l.rows))
	return col, row
}

// Draw renders one snapshot and shows it.
func (v *View) Draw(snap *game.MatchSnapshot) {
	v.screen.Clear()

	w, h := v.screen.Size()
	arena := snap.Arena
	if arena.Width <= 0 || arena.Height <= 0 {
		arena = game.DefaultArena
	}
	l := layout{cols: w, rows: h - fieldTop - fieldBottom, arena: arena}
	if l.cols <= 0 || l.rows <= 0 {
		v.screen.Show()
		return
	}

	for row := fieldTop; row < fieldTop+l.rows; row++ {
		for col := 0; col < w; col++ {
			v.screen.SetContent(col, row, ' ', nil, backgroundStyle)
		}
	}

	v.drawPickup(l, snap.Pickup)
	for i, fs := range snap.Fighters {
		v.drawFighter(l, fs.Fighter, fighterStyles[i])
	}
	v.drawHUD(w, snap)
	v.drawStatus(h-1, snap)

	v.screen.Show()
}

func (v *View) drawPickup(l layout, p game.Pickup) {
	col, row := l.cell(p.Center())
	v.screen.SetContent(col, row, pickupRune, nil, pickupStyle)
}

// drawFighter fills the hitbox and paints the guarded edges red: left and
// right columns for a vertical guard, top and bottom rows for a horizontal one.
func (v *View) drawFighter(l layout, f game.Fighter, body tcell.Style) {
	c0, r0 := l.cell(f.Position)
	c1, r1 := l.cell(f.Position.Add(game.Vec(f.Size, f.Size)))
	if c1 <= c0 {
		c1 = c0 + 1
	}
	if r1 <= r0 {
		r1 = r0 + 1
	}

	for row := r0; row < r1; row++ {
		for col := c0; col < c1; col++ {
			style := body
			switch f.Orientation {
			case game.Vertical:
				if col == c0 || col == c1-1 {
					style = stripeStyle
				}
			case game.Horizontal:
				if row == r0 || row == r1-1 {
					style = stripeStyle
				}
			}
			v.screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

func (v *View) drawHUD(w int, snap *game.MatchSnapshot) {
	left := healthLabel(snap.Fighters[0])
	right := healthLabel(snap.Fighters[1])

	v.drawText(0, 0, left, textStyle.Foreground(rgb(render.FighterColors[0])))
	v.drawText(w-len([]rune(right)), 0, right, textStyle.Foreground(rgb(render.FighterColors[1])))
}

func healthLabel(fs game.FighterSnapshot) string {
	filled := fs.Health * healthCells / game.MaxHealth
	return fmt.Sprintf("%s [%s%s] %3d", fs.Name,
		strings.Repeat("█", filled), strings.Repeat(" ", healthCells-filled), fs.Health)
}

func (v *View) drawStatus(row int, snap *game.MatchSnapshot) {
	switch snap.State {
	case game.Idle:
		v.drawText(0, row, "SPACE start   WASD: P1   Arrows: P2   Esc: quit", hintStyle)
	case game.Running:
		v.drawText(0, row, fmt.Sprintf("Tick %d", snap.TickNumber), hintStyle)
	case game.Finished:
		v.drawText(0, row, fmt.Sprintf("%s wins! SPACE to play again", snap.WinnerName), textStyle)
	}
}

func (v *View) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
