package core

import (
	"fmt"

	"twido/internal/garden"
	"twido/internal/rewards"
	"twido/pkg/domain"
)

// ToolOutcome reports the result of UseTool.
type ToolOutcome struct {
	Success     bool
	DroppedItem domain.ItemKind
}

// UseTool consumes one tool to clear decorationID. The id must name a
// generated decoration of the given kind that is still present. A failed
// attempt leaves state untouched.
func (s *Store) UseTool(tool domain.Tool, decorationID string, kind domain.DecorationKind) ToolOutcome {
	var out ToolOutcome
	s.mutate("use_tool", func(d *domain.Document) []domain.Field {
		slot, ok := garden.LookupDecoration(decorationID)
		if !ok || slot.Kind != kind {
			return nil
		}
		if !rewards.CanClear(tool, slot.Kind) || d.Garden.IsRemoved(decorationID) {
			return nil
		}
		switch tool {
		case domain.ToolShovel:
			if d.Garden.Shovels <= 0 {
				return nil
			}
			d.Garden.Shovels--
		case domain.ToolPickaxe:
			if d.Garden.Pickaxes <= 0 {
				return nil
			}
			d.Garden.Pickaxes--
		}
		d.Garden = d.Garden.WithRemoved(decorationID)
		if item, ok := s.rewards.DropOnToolUse(tool, slot.Kind); ok {
			d.Garden.Items[item]++
			out.DroppedItem = item
		}
		out.Success = true
		return []domain.Field{domain.FieldGarden}
	})
	if out.DroppedItem != "" {
		s.notifier.Notify(domain.Notification{
			Kind:    domain.NoticeItemDrop,
			Title:   "Item found",
			Message: fmt.Sprintf("You found a %s!", out.DroppedItem),
		})
	}
	return out
}

// RestoreDecoration removes id from the removed set.
func (s *Store) RestoreDecoration(id string) bool {
	_, ok := s.mutate("restore_decoration", func(d *domain.Document) []domain.Field {
		if !d.Garden.IsRemoved(id) {
			return nil
		}
		d.Garden = d.Garden.WithoutRemoved(id)
		return []domain.Field{domain.FieldGarden}
	})
	return ok
}

// DebugRemoveDecoration adds id to the removed set without consuming a tool.
// Unknown ids are rejected.
func (s *Store) DebugRemoveDecoration(id string) bool {
	_, ok := s.mutate("debug_remove_decoration", func(d *domain.Document) []domain.Field {
		if _, known := garden.LookupDecoration(id); !known || d.Garden.IsRemoved(id) {
			return nil
		}
		d.Garden = d.Garden.WithRemoved(id)
		return []domain.Field{domain.FieldGarden}
	})
	return ok
}

// RemovedDecorations returns the removed decoration ids.
func (s *Store) RemovedDecorations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.doc.Garden.RemovedDecorationIDs...)
}

// Garden returns a copy of the garden economy.
func (s *Store) Garden() domain.GardenEconomy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Garden.Clone()
}

// Layout composes the renderable garden for the current state.
func (s *Store) Layout() garden.Layout {
	s.mu.Lock()
	tasks := domain.CloneTasks(s.doc.Tasks)
	g := s.doc.Garden.Clone()
	s.mu.Unlock()
	return garden.Build(tasks, g)
}
