package game

// Advance integrates one step of motion for f and returns the result.
//
// Size is resynced from health before anything else, and that size bounds
// the move. A wall contact on an axis flips the heading on that axis and
// turns the guard toward the wall: side walls give Vertical, top and bottom
// give Horizontal. The y axis is checked last, so a corner hit ends up
// Horizontal. The position is clamped whether or not a reflection happened.
func Advance(f Fighter, arena Arena) Fighter {
	f.Size = SizeForHealth(f.Health)

	next := f.Position.Add(f.Direction.Scale(Speed))

	if next.X <= 0 || next.X >= arena.Width-f.Size {
		f.Direction.X = reflect(f.Direction.X)
		f.Orientation = Vertical
	}
	if next.Y <= 0 || next.Y >= arena.Height-f.Size {
		f.Direction.Y = reflect(f.Direction.Y)
		f.Orientation = Horizontal
	}

	f.Position = arena.Clamp(next, f.Size)
	return f
}

// reflect negates a heading component without producing -0.
func reflect(v float64) float64 {
	if v == 0 {
		return 0
	}
	return -v
}
