package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"twido/internal/garden"
	"twido/pkg/domain"
)

func newGardenCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "garden",
		Short: "Show tools, inventory and the garden layout",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
			layout := a.store.Layout()
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(layout)
			}
			g := a.store.Garden()
			a.printf("shovels: %d  pickaxes: %d  today: %d\n", g.Shovels, g.Pickaxes, g.DailyShovelCount)
			items := make([]string, 0, len(g.Items))
			for kind, n := range g.Items {
				items = append(items, fmt.Sprintf("%s=%d", kind, n))
			}
			slices.Sort(items)
			a.printf("items: %v\n", items)
			counts := map[domain.DecorationKind]int{}
			for _, d := range layout.Decorations {
				counts[d.Kind]++
			}
			a.printf("decorations: %d weed, %d rock, %d crystal (%d removed)\n",
				counts[domain.DecorationWeed], counts[domain.DecorationRock], counts[domain.DecorationCrystal], len(g.RemovedDecorationIDs))
			a.printf("task objects: %d\n", len(layout.TaskObjects))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full layout as JSON")
	return cmd
}

func newToolCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tool <shovel|pickaxe> <decoration-id>",
		Short: "Use a tool to clear a decoration",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			tool := domain.Tool(args[0])
			if tool != domain.ToolShovel && tool != domain.ToolPickaxe {
				return fmt.Errorf("unknown tool %q", args[0])
			}
			slot, ok := garden.LookupDecoration(args[1])
			if !ok {
				return fmt.Errorf("unknown decoration %q", args[1])
			}
			out := a.store.UseTool(tool, slot.ID, slot.Kind)
			if !out.Success {
				return fmt.Errorf("cannot use %s on %s %s", tool, slot.Kind, slot.ID)
			}
			a.printf("cleared %s %s\n", slot.Kind, slot.ID)
			return nil
		}),
	}
}

func newRespawnCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "respawn",
		Short: "Grow back removed decorations",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
			id, ok := garden.NewRespawner(a.store, a.cfg.RespawnInterval, nil, a.logger).Tick()
			if !ok {
				a.printf("nothing grew back\n")
				return nil
			}
			a.printf("respawned %s\n", id)
			return nil
		}),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "restore <decoration-id>",
			Short: "Restore one removed decoration",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				if !a.store.RestoreDecoration(args[0]) {
					return fmt.Errorf("decoration %s is not removed", args[0])
				}
				a.printf("restored %s\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:    "remove <decoration-id>",
			Short:  "Remove a decoration without using a tool",
			Hidden: true,
			Args:   cobra.ExactArgs(1),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				if !a.store.DebugRemoveDecoration(args[0]) {
					return fmt.Errorf("decoration %s is already removed", args[0])
				}
				a.printf("removed %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}
