package rewards

import (
	"math/rand/v2"
	"time"
)

// RandSource is the randomness consumed by the reward rules. *rand.Rand
// satisfies it; tests inject fixed sequences.
type RandSource interface {
	Float64() float64
}

// NewRandSource returns a time-seeded PCG source.
func NewRandSource() RandSource {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>17|1))
}

// Entry is a weighted outcome of a Table.
type Entry[T any] struct {
	Value  T
	Weight int
}

// Table is a weighted draw over outcomes.
type Table[T any] []Entry[T]

// TotalWeight sums the positive weights.
func (t Table[T]) TotalWeight() int {
	total := 0
	for _, e := range t {
		if e.Weight > 0 {
			total += e.Weight
		}
	}
	return total
}

// Roll draws one outcome. The boolean is false for an empty or zero-weight table.
func (t Table[T]) Roll(rng RandSource) (T, bool) {
	var zero T
	total := t.TotalWeight()
	if total == 0 {
		return zero, false
	}
	roll := int(rng.Float64() * float64(total))
	if roll >= total {
		roll = total - 1
	}
	current := 0
	for _, e := range t {
		if e.Weight <= 0 {
			continue
		}
		current += e.Weight
		if roll < current {
			return e.Value, true
		}
	}
	return zero, false
}
