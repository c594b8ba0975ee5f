package garden

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twido/pkg/domain"
)

type seqSource struct {
	vals []float64
	i    int
}

func (s *seqSource) Float64() float64 {
	v := s.vals[s.i]
	if s.i < len(s.vals)-1 {
		s.i++
	}
	return v
}

func fixed(vals ...float64) *seqSource { return &seqSource{vals: vals} }

func TestSlotPartition(t *testing.T) {
	deco := DecorationSlotIndices()
	tasks := TaskSlotIndices()
	require.Len(t, deco, DecorationSlots)
	require.Len(t, tasks, TaskSlots)

	seen := make(map[int]bool, TotalSlots)
	for _, i := range append(deco, tasks...) {
		require.False(t, seen[i], "slot %d assigned twice", i)
		require.True(t, i >= 0 && i < TotalSlots)
		seen[i] = true
	}
	assert.Len(t, seen, TotalSlots)
}

func TestKindForIsDeterministic(t *testing.T) {
	for i := 0; i < TotalSlots; i++ {
		assert.Equal(t, KindFor(i), KindFor(i))
	}
	assert.Equal(t, domain.DecorationWeed, KindFor(1))
	assert.Equal(t, domain.DecorationRock, KindFor(5))
	assert.Equal(t, domain.DecorationCrystal, KindFor(46))
}

func TestDecorationKindMix(t *testing.T) {
	counts := map[domain.DecorationKind]int{}
	for _, d := range Decorations() {
		counts[d.Kind]++
	}
	assert.Equal(t, 25, counts[domain.DecorationWeed])
	assert.Equal(t, 12, counts[domain.DecorationRock])
	assert.Equal(t, 3, counts[domain.DecorationCrystal])
}

func TestSlotPlacementIsPureAndOnSphere(t *testing.T) {
	for i := 0; i < TotalSlots; i++ {
		p := SlotPlacement(i, 1.95)
		assert.Equal(t, p, SlotPlacement(i, 1.95))

		norm := math.Sqrt(p.Position[0]*p.Position[0] + p.Position[1]*p.Position[1] + p.Position[2]*p.Position[2])
		assert.InDelta(t, 1.95, norm, 1e-9)

		// the rotation must carry +Y onto the surface normal
		a, b := math.Cos(p.Rotation[0]), math.Sin(p.Rotation[0])
		c, d := math.Cos(p.Rotation[1]), math.Sin(p.Rotation[1])
		e, f := math.Cos(p.Rotation[2]), math.Sin(p.Rotation[2])
		up := Vec3{-c * f, a*e - b*f*d, b*e + a*f*d}
		for k := 0; k < 3; k++ {
			assert.InDelta(t, p.Position[k]/norm, up[k], 1e-9, "slot %d axis %d", i, k)
		}
	}
}

func TestBuildOmitsRemovedAndCapsTaskObjects(t *testing.T) {
	g := domain.NewGardenEconomy().WithRemoved(DecorationID(1)).WithRemoved(DecorationID(46))
	var tasks []domain.Task
	for i := 0; i < 60; i++ {
		tasks = append(tasks, domain.Task{ID: fmt.Sprintf("t%02d", i), Completed: true, Type: domain.ModeWork})
	}
	tasks = append(tasks, domain.Task{ID: "open", Completed: false})

	layout := Build(tasks, g)
	assert.Len(t, layout.Decorations, DecorationSlots-2)
	for _, d := range layout.Decorations {
		assert.NotEqual(t, DecorationID(1), d.ID)
		assert.NotEqual(t, DecorationID(46), d.ID)
	}
	require.Len(t, layout.TaskObjects, MaxTaskObjects)
	assert.Equal(t, "t10", layout.TaskObjects[0].TaskID)
	assert.Equal(t, "t59", layout.TaskObjects[MaxTaskObjects-1].TaskID)
	assert.Equal(t, TaskSlotIndices()[0], layout.TaskObjects[0].Slot)
	assert.Equal(t, domain.ModeWork, layout.TaskObjects[0].TaskMode)
}

func TestPickRespawn(t *testing.T) {
	removed := []string{DecorationID(1), DecorationID(5), "unknown"}

	id, ok := PickRespawn(removed, fixed(0.1, 0))
	require.True(t, ok)
	assert.Equal(t, DecorationID(1), id)

	id, ok = PickRespawn(removed, fixed(0.8, 0))
	require.True(t, ok)
	assert.Equal(t, DecorationID(5), id)

	_, ok = PickRespawn(removed, fixed(0.97))
	assert.False(t, ok, "no crystal removed")

	_, ok = PickRespawn(nil, fixed(0.1))
	assert.False(t, ok)
}

type fakeRestorer struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakeRestorer) RemovedDecorations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeRestorer) RestoreDecoration(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.removed {
		if r == id {
			f.removed = append(f.removed[:i], f.removed[i+1:]...)
			return true
		}
	}
	return false
}

func TestRespawnerTickAndRun(t *testing.T) {
	target := &fakeRestorer{removed: []string{DecorationID(1), DecorationID(9)}}
	r := NewRespawner(target, time.Millisecond, fixed(0.1, 0), nil)

	id, ok := r.Tick()
	require.True(t, ok)
	assert.Equal(t, DecorationID(1), id)
	assert.Equal(t, []string{DecorationID(9)}, target.RemovedDecorations())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(target.RemovedDecorations()) == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

type recordingLogger struct {
	domain.NopLogger
	mu    sync.Mutex
	infos []string
}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, fmt.Sprint(append([]any{msg}, args...)...))
	l.mu.Unlock()
}

func TestRespawnerLogsThroughSharedLogger(t *testing.T) {
	var logger domain.Logger = &recordingLogger{}
	target := &fakeRestorer{removed: []string{DecorationID(1)}}
	r := NewRespawner(target, time.Hour, fixed(0.1, 0), logger)

	_, ok := r.Tick()
	require.True(t, ok)
	rec := logger.(*recordingLogger)
	require.Len(t, rec.infos, 1)
	assert.Contains(t, rec.infos[0], "decoration respawned")
	assert.Contains(t, rec.infos[0], DecorationID(1))
}
