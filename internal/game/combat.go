package game

// guards reports whether a fighter's stripes sit on the edges struck by a
// collision. A horizontal (side-to-side) hit lands on the left/right edges,
// which Vertical guards; a vertical hit lands on top/bottom, which
// Horizontal guards.
func guards(f Fighter, horizontalHit bool) bool {
	if horizontalHit {
		return f.Orientation == Vertical
	}
	return f.Orientation == Horizontal
}

// ResolveCombat decides who takes damage when the two fighters touch.
//
// The collision axis is the one with the shallower penetration; equal
// depths count as a vertical hit. Exactly one guarding fighter damages the
// other. Both or neither guarding is a stand-off and nobody is hurt.
// Each returned value is either 0 or Damage.
func ResolveCombat(p1, p2 Fighter) (p1Damage, p2Damage int) {
	a, b := p1.Bounds(), p2.Bounds()
	if !a.Intersects(b) {
		return 0, 0
	}

	overlapX, overlapY := a.OverlapDepth(b)
	horizontalHit := overlapX < overlapY

	g1 := guards(p1, horizontalHit)
	g2 := guards(p2, horizontalHit)

	switch {
	case g1 && !g2:
		return 0, Damage
	case !g1 && g2:
		return Damage, 0
	default:
		return 0, 0
	}
}
