package game

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidIntent is returned for diagonal, zero or non-unit headings,
	// or an orientation that is not perpendicular to the heading.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrUnknownFighter is returned when the fighter id is not P1 or P2.
	ErrUnknownFighter = errors.New("unknown fighter")
	// ErrMatchNotRunning is returned when input arrives outside of a running match.
	ErrMatchNotRunning = errors.New("match not running")
)

// Intent is a complete replacement of a fighter's heading and guard.
type Intent struct {
	Direction   Vector2     `json:"direction"`
	Orientation Orientation `json:"orientation"`
}

// Cardinal intents. The guard is always perpendicular to the movement axis.
var (
	IntentUp    = Intent{Direction: Vec(0, -1), Orientation: Horizontal}
	IntentDown  = Intent{Direction: Vec(0, 1), Orientation: Horizontal}
	IntentLeft  = Intent{Direction: Vec(-1, 0), Orientation: Vertical}
	IntentRight = Intent{Direction: Vec(1, 0), Orientation: Vertical}
)

// IntentForDirection derives the intent for a cardinal heading.
func IntentForDirection(dir Vector2) (Intent, error) {
	switch dir {
	case IntentUp.Direction:
		return IntentUp, nil
	case IntentDown.Direction:
		return IntentDown, nil
	case IntentLeft.Direction:
		return IntentLeft, nil
	case IntentRight.Direction:
		return IntentRight, nil
	}
	return Intent{}, ErrInvalidIntent
}

// Validate checks that the intent is one of the four cardinal intents.
func (in Intent) Validate() error {
	want, err := IntentForDirection(in.Direction)
	if err != nil {
		return err
	}
	if want.Orientation != in.Orientation {
		return ErrInvalidIntent
	}
	return nil
}

// keyBindings maps lower-cased key names to fighter intents.
// P1 plays on WASD, P2 on the arrow keys.
var keyBindings = map[string]struct {
	id     FighterID
	intent Intent
}{
	"w":          {P1, IntentUp},
	"s":          {P1, IntentDown},
	"a":          {P1, IntentLeft},
	"d":          {P1, IntentRight},
	"arrowup":    {P2, IntentUp},
	"arrowdown":  {P2, IntentDown},
	"arrowleft":  {P2, IntentLeft},
	"arrowright": {P2, IntentRight},
}

// ToggleKey starts a match, or resets a finished one.
const ToggleKey = " "

// IntentForKey maps a browser-style key name to a fighter intent.
// Matching is case-insensitive. Unbound keys return ok=false.
func IntentForKey(key string) (FighterID, Intent, bool) {
	b, ok := keyBindings[strings.ToLower(key)]
	if !ok {
		return NoFighter, Intent{}, false
	}
	return b.id, b.intent, true
}

// IsToggleKey reports whether key is the start/reset key.
func IsToggleKey(key string) bool {
	return key == ToggleKey || strings.EqualFold(key, "space")
}
