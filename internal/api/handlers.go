package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"arena-duel/internal/game"
)

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	if wantsMsgpack(r) {
		writeMsgpack(w, snap)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"arena":        snap.Arena,
		"tickRate":     h.engine.TickRate(),
		"maxHealth":    game.MaxHealth,
		"damage":       game.Damage,
		"healthBoost":  game.HealthBoost,
		"speed":        game.Speed,
		"baseSize":     game.BaseSize,
		"minSize":      game.MinSize,
		"pickupRadius": game.PickupRadius,
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "rendering disabled", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.renderer.RenderPNG(&buf, h.engine.GetSnapshot()); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleMatchStart(w http.ResponseWriter, r *http.Request) {
	started := h.engine.Start()
	writeJSON(w, map[string]interface{}{
		"started": started,
		"state":   h.engine.GetSnapshot().State,
	})
}

func (h *routerHandlers) handleMatchReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	writeJSON(w, map[string]interface{}{
		"state": h.engine.GetSnapshot().State,
	})
}

func (h *routerHandlers) handleMatchToggle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"state": h.engine.Toggle(),
	})
}

// intentRequest carries either a key name or an explicit fighter heading.
type intentRequest struct {
	Key       string         `json:"key"`
	Fighter   game.FighterID `json:"fighter"`
	Direction *game.Vector2  `json:"direction"`
}

func (h *routerHandlers) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Key != "" {
		if game.IsToggleKey(req.Key) {
			writeJSON(w, map[string]interface{}{"state": h.engine.Toggle()})
			return
		}
		id, intent, ok := game.IntentForKey(req.Key)
		if !ok {
			writeError(w, "unbound key", http.StatusBadRequest)
			return
		}
		h.applyIntent(w, id, intent)
		return
	}

	if req.Direction == nil {
		writeError(w, "key or direction required", http.StatusBadRequest)
		return
	}
	if !req.Fighter.Valid() {
		writeError(w, game.ErrUnknownFighter.Error(), http.StatusBadRequest)
		return
	}
	intent, err := game.IntentForDirection(*req.Direction)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.applyIntent(w, req.Fighter, intent)
}

func (h *routerHandlers) applyIntent(w http.ResponseWriter, id game.FighterID, intent game.Intent) {
	if err := h.engine.ApplyIntent(id, intent); err != nil {
		writeError(w, err.Error(), intentErrorStatus(err))
		return
	}
	writeJSON(w, map[string]interface{}{
		"success":     true,
		"fighter":     id,
		"direction":   intent.Direction,
		"orientation": intent.Orientation,
	})
}

// intentErrorStatus maps game input errors to HTTP status codes.
func intentErrorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrMatchNotRunning):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidIntent), errors.Is(err, game.ErrUnknownFighter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
