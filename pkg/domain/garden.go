package domain

import "sort"

// Tool is a consumable used to clear decorations from the garden.
type Tool string

// Supported tools.
const (
	ToolShovel  Tool = "shovel"
	ToolPickaxe Tool = "pickaxe"
)

// DecorationKind identifies the visual class of a garden decoration.
type DecorationKind string

// Decoration kinds.
const (
	DecorationWeed    DecorationKind = "weed"
	DecorationRock    DecorationKind = "rock"
	DecorationCrystal DecorationKind = "crystal"
)

// ItemKind identifies an inventory item dropped by tool use.
type ItemKind string

// Item kinds dropped by the pickaxe.
const (
	ItemGem ItemKind = "gem"
	ItemOre ItemKind = "ore"
)

// DecorationSlot is a generated, never persisted, decoration placement.
type DecorationSlot struct {
	ID              string         `json:"id"`
	SphereSlotIndex int            `json:"sphereSlotIndex"`
	Kind            DecorationKind `json:"kind"`
}

// GardenEconomy holds the tool counters, inventory and removed decorations.
//
// DailyShovelCount resets lazily: the reset is applied at the next completion
// event whose calendar date differs from LastShovelDate.
type GardenEconomy struct {
	Shovels              int              `json:"shovels"`
	Pickaxes             int              `json:"pickaxes"`
	Items                map[ItemKind]int `json:"items"`
	DailyShovelCount     int              `json:"dailyShovelCount"`
	LastShovelDate       string           `json:"lastShovelDate"`
	RemovedDecorationIDs []string         `json:"removedDecorationIds"`
}

// NewGardenEconomy returns the zero economy with allocated collections.
func NewGardenEconomy() GardenEconomy {
	return GardenEconomy{
		Items:                make(map[ItemKind]int),
		RemovedDecorationIDs: []string{},
	}
}

// Clone returns a deep copy.
func (g GardenEconomy) Clone() GardenEconomy {
	cp := g
	cp.Items = make(map[ItemKind]int, len(g.Items))
	for k, v := range g.Items {
		cp.Items[k] = v
	}
	cp.RemovedDecorationIDs = append([]string{}, g.RemovedDecorationIDs...)
	return cp
}

// IsRemoved reports whether the decoration id is in the removed set.
func (g GardenEconomy) IsRemoved(id string) bool {
	for _, removed := range g.RemovedDecorationIDs {
		if removed == id {
			return true
		}
	}
	return false
}

// WithRemoved returns a copy whose removed set contains id.
func (g GardenEconomy) WithRemoved(id string) GardenEconomy {
	cp := g.Clone()
	if cp.IsRemoved(id) {
		return cp
	}
	cp.RemovedDecorationIDs = append(cp.RemovedDecorationIDs, id)
	sort.Strings(cp.RemovedDecorationIDs)
	return cp
}

// WithoutRemoved returns a copy whose removed set no longer contains id.
func (g GardenEconomy) WithoutRemoved(id string) GardenEconomy {
	cp := g.Clone()
	out := cp.RemovedDecorationIDs[:0]
	for _, removed := range cp.RemovedDecorationIDs {
		if removed != id {
			out = append(out, removed)
		}
	}
	cp.RemovedDecorationIDs = out
	return cp
}

// normalize fills absent collections and clamps negative counters.
func (g GardenEconomy) normalize() GardenEconomy {
	cp := g.Clone()
	if cp.Shovels < 0 {
		cp.Shovels = 0
	}
	if cp.Pickaxes < 0 {
		cp.Pickaxes = 0
	}
	for k, v := range cp.Items {
		if v < 0 {
			cp.Items[k] = 0
		}
	}
	return cp
}
