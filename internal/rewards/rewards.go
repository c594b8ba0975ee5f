// Package rewards maps task completions to tool grants and tool use to item
// drops. The rules are pure apart from the injected random source.
package rewards

import "twido/pkg/domain"

const (
	// DefaultDailyShovelLimit caps shovel grants per calendar date.
	DefaultDailyShovelLimit = 3
	// DefaultPickaxeBonusProbability is the chance of a bonus pickaxe on a shovel grant.
	DefaultPickaxeBonusProbability = 0.05
	// DefaultRockDropProbability is the chance a pickaxe on a rock drops an item.
	DefaultRockDropProbability = 0.3
)

// Config fixes the canonical reward constants.
type Config struct {
	DailyShovelLimit        int
	PickaxeBonusProbability float64
	RockDropProbability     float64
}

// DefaultConfig returns the canonical rule set: 5% pickaxe bonus, crystals
// always drop, rocks drop 30% of the time.
func DefaultConfig() Config {
	return Config{
		DailyShovelLimit:        DefaultDailyShovelLimit,
		PickaxeBonusProbability: DefaultPickaxeBonusProbability,
		RockDropProbability:     DefaultRockDropProbability,
	}
}

// ItemTable is the uniform draw between the two item kinds.
var ItemTable = Table[domain.ItemKind]{
	{Value: domain.ItemGem, Weight: 50},
	{Value: domain.ItemOre, Weight: 50},
}

// Engine evaluates the reward rules.
type Engine struct {
	cfg Config
	rng RandSource
}

// NewEngine constructs an engine. A nil rng uses a time-seeded source.
func NewEngine(cfg Config, rng RandSource) *Engine {
	if cfg.DailyShovelLimit <= 0 {
		cfg.DailyShovelLimit = DefaultDailyShovelLimit
	}
	if cfg.PickaxeBonusProbability < 0 {
		cfg.PickaxeBonusProbability = 0
	}
	if rng == nil {
		rng = NewRandSource()
	}
	return &Engine{cfg: cfg, rng: rng}
}

// Config returns the engine constants.
func (e *Engine) Config() Config { return e.cfg }

// DailyGrant is the lazily reset per-date shovel counter.
type DailyGrant struct {
	Count int
	Date  string
}

// Grant is the outcome of a completion event.
type Grant struct {
	Shovels  int
	Pickaxes int
	Daily    DailyGrant
	Notice   *domain.Notification
}

// GrantOnCompletion applies the completion rule for a task of the given size.
// today is the caller's calendar date (YYYY-MM-DD).
func (e *Engine) GrantOnCompletion(size domain.Size, daily DailyGrant, today string) Grant {
	if daily.Date != today {
		daily = DailyGrant{Count: 0, Date: today}
	}
	out := Grant{Daily: daily}
	if daily.Count >= e.cfg.DailyShovelLimit {
		return out
	}
	out.Shovels = 1
	out.Daily.Count++
	if size == domain.SizeL || e.rng.Float64() < e.cfg.PickaxeBonusProbability {
		out.Pickaxes = 1
		out.Notice = &domain.Notification{
			Kind:    domain.NoticeShovelAndPickaxe,
			Title:   "Reward",
			Message: "You got a shovel and a pickaxe!",
		}
		return out
	}
	out.Notice = &domain.Notification{
		Kind:    domain.NoticeShovel,
		Title:   "Reward",
		Message: "You got a shovel!",
	}
	return out
}

// CanClear reports whether tool is able to remove a decoration of kind.
func CanClear(tool domain.Tool, kind domain.DecorationKind) bool {
	switch tool {
	case domain.ToolShovel:
		return kind == domain.DecorationWeed
	case domain.ToolPickaxe:
		return kind == domain.DecorationRock || kind == domain.DecorationCrystal
	default:
		return false
	}
}

// DropOnToolUse returns the item dropped by using tool on a decoration of kind.
func (e *Engine) DropOnToolUse(tool domain.Tool, kind domain.DecorationKind) (domain.ItemKind, bool) {
	if tool != domain.ToolPickaxe {
		return "", false
	}
	switch kind {
	case domain.DecorationCrystal:
		return ItemTable.Roll(e.rng)
	case domain.DecorationRock:
		if e.rng.Float64() < e.cfg.RockDropProbability {
			return ItemTable.Roll(e.rng)
		}
		return "", false
	default:
		return "", false
	}
}
