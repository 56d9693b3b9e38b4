package game

import "math"

// Balance constants. These are server-authoritative.
const (
	MaxHealth   = 100
	Damage      = 10
	HealthBoost = 20
	Speed       = 5.0
	BaseSize    = 100.0
	MinSize     = 30.0
)

// Orientation tells which pair of opposite edges carries the guard stripes.
type Orientation uint8

const (
	// Vertical guards the left and right edges.
	Vertical Orientation = iota
	// Horizontal guards the top and bottom edges.
	Horizontal
)

// String returns the wire name of the orientation.
func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// MarshalText encodes the orientation as its wire name.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes "horizontal" or "vertical".
func (o *Orientation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "horizontal":
		*o = Horizontal
	case "vertical":
		*o = Vertical
	default:
		return ErrInvalidIntent
	}
	return nil
}

// FighterID addresses one of the two fighters.
type FighterID uint8

const (
	NoFighter FighterID = iota
	P1
	P2
)

// String returns a display name for the fighter.
func (id FighterID) String() string {
	switch id {
	case P1:
		return "Player 1"
	case P2:
		return "Player 2"
	default:
		return ""
	}
}

// Valid reports whether id names one of the two fighters.
func (id FighterID) Valid() bool {
	return id == P1 || id == P2
}

// Fighter is a square combatant. Position is its top-left corner.
// Size is derived from Health and is never set on its own.
type Fighter struct {
	Position    Vector2     `json:"position"`
	Direction   Vector2     `json:"direction"`
	Health      int         `json:"health"`
	Size        float64     `json:"size"`
	Orientation Orientation `json:"orientation"`
}

// SizeForHealth returns the hitbox edge length for a health value.
func SizeForHealth(health int) float64 {
	return math.Max(MinSize, float64(health)/MaxHealth*BaseSize)
}

// Bounds returns the fighter's hitbox.
func (f Fighter) Bounds() Rect {
	return Rect{X: f.Position.X, Y: f.Position.Y, W: f.Size, H: f.Size}
}

// Center returns the midpoint of the hitbox.
func (f Fighter) Center() Vector2 {
	return f.Position.Add(Vec(f.Size/2, f.Size/2))
}

// IsDead reports whether the fighter has no health left.
func (f Fighter) IsDead() bool {
	return f.Health <= 0
}

// setHealth writes health clamped to [0, MaxHealth], then resyncs size
// and keeps the resized hitbox inside the arena.
func (f *Fighter) setHealth(health int, arena Arena) {
	f.Health = clampInt(health, 0, MaxHealth)
	f.Size = SizeForHealth(f.Health)
	f.Position = arena.Clamp(f.Position, f.Size)
}

// Arena is the rectangular play field, anchored at the origin.
type Arena struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultArena is the classic 800x600 duel field.
var DefaultArena = Arena{Width: 800, Height: 600}

// Fit returns the arena grown, where needed, so each side holds a
// full-health fighter.
func (a Arena) Fit() Arena {
	return Arena{Width: math.Max(a.Width, BaseSize), Height: math.Max(a.Height, BaseSize)}
}

// Clamp keeps a square of the given size fully inside the arena.
func (a Arena) Clamp(pos Vector2, size float64) Vector2 {
	return Vector2{
		X: clamp(pos.X, 0, math.Max(0, a.Width-size)),
		Y: clamp(pos.Y, 0, math.Max(0, a.Height-size)),
	}
}

// initialFighters returns the fixed starting line-up.
func initialFighters() [2]Fighter {
	return [2]Fighter{
		{
			Position:    Vec(100, 100),
			Direction:   Vec(1, 0),
			Health:      MaxHealth,
			Size:        BaseSize,
			Orientation: Vertical,
		},
		{
			Position:    Vec(600, 400),
			Direction:   Vec(-1, 0),
			Health:      MaxHealth,
			Size:        BaseSize,
			Orientation: Vertical,
		},
	}
}
