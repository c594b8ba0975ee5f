// Package garden lays out decorations and completed-task objects on the reward
// planet. Every placement is a pure function of its slot index; only the set
// of removed decoration ids is persisted.
package garden

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"twido/pkg/domain"
)

const (
	// TotalSlots is the number of sphere-surface slots.
	TotalSlots = 150
	// DecorationSlots is the size of the reserved decoration pool.
	DecorationSlots = 40
	// TaskSlots is the size of the reserved task-object pool.
	TaskSlots = TotalSlots - DecorationSlots
	// MaxTaskObjects bounds how many completed tasks are shown.
	MaxTaskObjects = 50
	// KindSeed keys the decoration kind hash.
	KindSeed uint32 = 0x74776964

	surfaceRadius = 1.95
	crystalRadius = 1.9
)

// goldenAngle is pi*(3-sqrt(5)).
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Vec3 is an x/y/z triple.
type Vec3 [3]float64

// Placement is a position on the sphere and the XYZ Euler rotation that
// orients the object's up axis along the surface normal.
type Placement struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

// Object is a placed decoration or task object.
type Object struct {
	ID        string                `json:"id"`
	Slot      int                   `json:"slot"`
	Kind      domain.DecorationKind `json:"kind,omitempty"`
	TaskID    string                `json:"taskId,omitempty"`
	TaskMode  domain.Mode           `json:"taskMode,omitempty"`
	Placement Placement             `json:"placement"`
}

// Layout is the renderable garden.
type Layout struct {
	Decorations []Object `json:"decorations"`
	TaskObjects []Object `json:"taskObjects"`
}

var (
	decorationSlotIndices = buildDecorationSlots()
	taskSlotIndices       = buildTaskSlots(decorationSlotIndices)
)

// decoration slots are spread evenly across the Fibonacci ordering so they do
// not cluster at one pole.
func buildDecorationSlots() []int {
	out := make([]int, DecorationSlots)
	for k := range out {
		out[k] = int((float64(k) + 0.5) * TotalSlots / DecorationSlots)
	}
	return out
}

func buildTaskSlots(decorations []int) []int {
	reserved := make(map[int]struct{}, len(decorations))
	for _, i := range decorations {
		reserved[i] = struct{}{}
	}
	out := make([]int, 0, TaskSlots)
	for i := 0; i < TotalSlots; i++ {
		if _, ok := reserved[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// DecorationSlotIndices returns the reserved decoration slots in order.
func DecorationSlotIndices() []int { return append([]int(nil), decorationSlotIndices...) }

// TaskSlotIndices returns the reserved task-object slots in order.
func TaskSlotIndices() []int { return append([]int(nil), taskSlotIndices...) }

// DecorationID names the decoration occupying slot.
func DecorationID(slot int) string { return fmt.Sprintf("decoration-%d", slot) }

// KindFor derives the decoration kind of slot from a seeded FNV-1a hash
// bucketed into 100: [0,60) weed, [60,90) rock, [90,100) crystal.
func KindFor(slot int) domain.DecorationKind {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], KindSeed)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(slot))
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	switch bucket := h.Sum32() % 100; {
	case bucket < 60:
		return domain.DecorationWeed
	case bucket < 90:
		return domain.DecorationRock
	default:
		return domain.DecorationCrystal
	}
}

// Decorations returns the full generated decoration pool.
func Decorations() []domain.DecorationSlot {
	out := make([]domain.DecorationSlot, 0, len(decorationSlotIndices))
	for _, slot := range decorationSlotIndices {
		out = append(out, domain.DecorationSlot{ID: DecorationID(slot), SphereSlotIndex: slot, Kind: KindFor(slot)})
	}
	return out
}

// LookupDecoration resolves a decoration id to its generated slot.
func LookupDecoration(id string) (domain.DecorationSlot, bool) {
	for _, d := range Decorations() {
		if d.ID == id {
			return d, true
		}
	}
	return domain.DecorationSlot{}, false
}

// SlotPlacement places slot i of the Fibonacci sphere at radius r.
func SlotPlacement(i int, r float64) Placement {
	phi := math.Acos(1 - 2*(float64(i)+0.5)/TotalSlots)
	theta := goldenAngle * float64(i)
	pos := Vec3{
		r * math.Sin(phi) * math.Cos(theta),
		r * math.Sin(phi) * math.Sin(theta),
		r * math.Cos(phi),
	}
	return Placement{Position: pos, Rotation: alignUp(pos)}
}

// Build composes the layout for the current task list and economy. Removed
// decorations are omitted; the most recent MaxTaskObjects completed tasks are
// assigned to task slots in task order.
func Build(tasks []domain.Task, g domain.GardenEconomy) Layout {
	layout := Layout{Decorations: []Object{}, TaskObjects: []Object{}}
	for _, d := range Decorations() {
		if g.IsRemoved(d.ID) {
			continue
		}
		r := surfaceRadius
		if d.Kind == domain.DecorationCrystal {
			r = crystalRadius
		}
		layout.Decorations = append(layout.Decorations, Object{
			ID:        d.ID,
			Slot:      d.SphereSlotIndex,
			Kind:      d.Kind,
			Placement: SlotPlacement(d.SphereSlotIndex, r),
		})
	}

	var completed []domain.Task
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		}
	}
	if len(completed) > MaxTaskObjects {
		completed = completed[len(completed)-MaxTaskObjects:]
	}
	for i, t := range completed {
		slot := taskSlotIndices[i%len(taskSlotIndices)]
		layout.TaskObjects = append(layout.TaskObjects, Object{
			ID:        "task-" + t.ID,
			Slot:      slot,
			TaskID:    t.ID,
			TaskMode:  t.Type,
			Placement: SlotPlacement(slot, surfaceRadius),
		})
	}
	return layout
}

// alignUp returns the XYZ Euler angles of the shortest rotation taking the
// +Y axis onto the direction of pos.
func alignUp(pos Vec3) Vec3 {
	n := math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2])
	if n == 0 {
		return Vec3{}
	}
	nx, ny, nz := pos[0]/n, pos[1]/n, pos[2]/n

	// quaternion from (0,1,0) to (nx,ny,nz)
	var qx, qy, qz, qw float64
	if r := ny + 1; r < 1e-9 {
		qx, qy, qz, qw = 0, 0, 1, 0
	} else {
		qx, qy, qz, qw = nz, 0, -nx, r
		l := math.Sqrt(qx*qx + qy*qy + qz*qz + qw*qw)
		qx, qy, qz, qw = qx/l, qy/l, qz/l, qw/l
	}

	m11 := 1 - 2*(qy*qy+qz*qz)
	m12 := 2 * (qx*qy - qw*qz)
	m13 := 2 * (qx*qz + qw*qy)
	m22 := 1 - 2*(qx*qx+qz*qz)
	m23 := 2 * (qy*qz - qw*qx)
	m32 := 2 * (qy*qz + qw*qx)
	m33 := 1 - 2*(qx*qx+qy*qy)

	var e Vec3
	e[1] = math.Asin(math.Max(-1, math.Min(1, m13)))
	if math.Abs(m13) < 0.9999999 {
		e[0] = math.Atan2(-m23, m33)
		e[2] = math.Atan2(-m12, m11)
	} else {
		e[0] = math.Atan2(m32, m22)
	}
	return e
}
