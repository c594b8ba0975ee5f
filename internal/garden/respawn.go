package garden

import (
	"context"
	"time"

	"twido/internal/rewards"
	"twido/pkg/domain"
)

// DefaultRespawnInterval is how often one removed decoration may grow back.
const DefaultRespawnInterval = 8 * time.Hour

// RespawnTable weights the kind picked for regrowth.
var RespawnTable = rewards.Table[domain.DecorationKind]{
	{Value: domain.DecorationWeed, Weight: 70},
	{Value: domain.DecorationRock, Weight: 25},
	{Value: domain.DecorationCrystal, Weight: 5},
}

// PickRespawn draws a kind from RespawnTable and then picks uniformly among
// the removed decorations of that kind. It reports false when the drawn kind
// has no removed decorations.
func PickRespawn(removed []string, rng rewards.RandSource) (string, bool) {
	kind, ok := RespawnTable.Roll(rng)
	if !ok {
		return "", false
	}
	var candidates []string
	for _, id := range removed {
		d, ok := LookupDecoration(id)
		if ok && d.Kind == kind {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	idx := int(rng.Float64() * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	return candidates[idx], true
}

// Restorer is the slice of the state store the respawner drives.
type Restorer interface {
	RemovedDecorations() []string
	RestoreDecoration(id string) bool
}

// Respawner periodically restores one removed decoration. It is owned by the
// presentation layer; the store itself runs no timers.
type Respawner struct {
	target   Restorer
	interval time.Duration
	rng      rewards.RandSource
	logger   domain.Logger
}

// NewRespawner constructs a respawner. Zero interval uses DefaultRespawnInterval
// and a nil logger discards records.
func NewRespawner(target Restorer, interval time.Duration, rng rewards.RandSource, logger domain.Logger) *Respawner {
	if interval <= 0 {
		interval = DefaultRespawnInterval
	}
	if rng == nil {
		rng = rewards.NewRandSource()
	}
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Respawner{target: target, interval: interval, rng: rng, logger: logger}
}

// Tick performs one respawn attempt.
func (r *Respawner) Tick() (string, bool) {
	id, ok := PickRespawn(r.target.RemovedDecorations(), r.rng)
	if !ok {
		return "", false
	}
	if !r.target.RestoreDecoration(id) {
		return "", false
	}
	r.logger.Info("decoration respawned", "id", id)
	return id, true
}

// Run ticks until ctx is cancelled; the ticker is released on return.
func (r *Respawner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}
