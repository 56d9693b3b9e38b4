package game

import (
	"math"
	"math/rand"
)

// PickupRadius is the fixed radius of the health pickup.
const PickupRadius = 10.0

// Pickup is a circular health orb. Position is the top-left corner of its
// bounding square, so its center sits at Position + PickupRadius.
type Pickup struct {
	Position Vector2 `json:"position"`
}

// Center returns the center of the orb.
func (p Pickup) Center() Vector2 {
	return p.Position.Add(Vec(PickupRadius, PickupRadius))
}

// SpawnPickup places a pickup uniformly inside the arena minus its diameter.
func SpawnPickup(arena Arena, rng *rand.Rand) Pickup {
	const diameter = 2 * PickupRadius
	return Pickup{Position: Vec(
		rng.Float64()*math.Max(0, arena.Width-diameter),
		rng.Float64()*math.Max(0, arena.Height-diameter),
	)}
}

// CollectPickup tests one fighter against the pickup.
//
// On contact the fighter is healed by HealthBoost (capped at MaxHealth) and
// the pickup respawns somewhere else. The returned fighter and pickup are
// unchanged when there is no contact.
func CollectPickup(f Fighter, p Pickup, arena Arena, rng *rand.Rand) (Fighter, Pickup, bool) {
	if Distance(f.Center(), p.Center()) >= f.Size/2+PickupRadius {
		return f, p, false
	}

	f.setHealth(f.Health+HealthBoost, arena)
	return f, SpawnPickup(arena, rng), true
}
