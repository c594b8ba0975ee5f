package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"twido/internal/core"
	"twido/pkg/domain"
)

var errTaskNotFound = errors.New("task not found")

func newAddCmd(opts *globalOptions) *cobra.Command {
	var size string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task in the current mode",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			task, err := a.store.AddTask(strings.Join(args, " "), domain.Size(strings.ToUpper(size)))
			if err != nil {
				return err
			}
			a.printf("%s\t%s\t[%s/%s]\n", task.ID, task.Title, task.Type, task.Size)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&size, "size", "s", string(domain.SizeM), "task size: S, M or L")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		all       bool
		completed bool
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks visible in the current mode",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
			var tasks []domain.Task
			switch {
			case all:
				tasks = a.store.Tasks()
			case completed:
				tasks = a.store.CompletedTasks()
			case mode != "":
				m := domain.Mode(mode)
				if !m.Valid() {
					return domain.ErrInvalidMode
				}
				tasks = a.store.TasksForMode(m)
			default:
				tasks = a.store.VisibleTasks()
			}
			if len(tasks) == 0 {
				a.printf("no tasks\n")
				return nil
			}
			now := time.Now()
			for _, t := range tasks {
				a.printf("%s\n", formatTask(t, now))
				for _, st := range t.SubTasks {
					a.printf("    %s %s\t%s\n", checkbox(st.Completed), st.ID, st.Title)
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "list tasks of both modes")
	cmd.Flags().BoolVar(&completed, "completed", false, "list completed tasks only")
	cmd.Flags().StringVar(&mode, "mode", "", "list tasks of one mode (work|private)")
	cmd.MarkFlagsMutuallyExclusive("all", "completed", "mode")
	return cmd
}

func formatTask(t domain.Task, now time.Time) string {
	line := fmt.Sprintf("%s %s\t%s\t[%s/%s]\t%s", checkbox(t.Completed), t.ID, t.Title, t.Type, t.Size, core.FormatElapsed(t.ElapsedAt(now)))
	if t.IsRunning {
		line += "\t(running)"
	}
	return line
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func newDoneCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <task-id>",
		Short: "Toggle task completion; completing may earn tools",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			out, ok := a.store.ToggleTaskCompletion(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", errTaskNotFound, args[0])
			}
			if !out.Completed {
				a.printf("reopened %s\n", args[0])
				return nil
			}
			a.printf("completed %s (+%d shovel, +%d pickaxe)\n", args[0], out.Shovels, out.Pickaxes)
			return nil
		}),
	}
}

func newTimerCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timer <task-id>",
		Short: "Start or stop the timer of a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			if !a.store.ToggleTaskTimer(args[0]) {
				return fmt.Errorf("%w: %s", errTaskNotFound, args[0])
			}
			if t, ok := a.store.RunningTask(); ok && t.ID == args[0] {
				a.printf("timer started for %s\n", t.ID)
				return nil
			}
			t, _ := a.store.Task(args[0])
			a.printf("timer stopped for %s at %s\n", t.ID, core.FormatElapsed(t.ElapsedTime))
			return nil
		}),
	}
}

func newEditCmd(opts *globalOptions) *cobra.Command {
	var (
		title string
		size  string
	)
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change the title or size of a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			var update core.TaskUpdate
			if cmd.Flags().Changed("title") {
				update.Title = &title
			}
			if cmd.Flags().Changed("size") {
				s := domain.Size(strings.ToUpper(size))
				update.Size = &s
			}
			ok, err := a.store.UpdateTask(args[0], update)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", errTaskNotFound, args[0])
			}
			a.printf("updated %s\n", args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&size, "size", "", "new size: S, M or L")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var (
		completed bool
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "delete [task-id]",
		Short: "Delete a task, every completed task, or everything",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			switch {
			case all:
				a.store.ClearAllTasks()
				a.printf("cleared all tasks\n")
			case completed:
				a.printf("deleted %d completed tasks\n", a.store.DeleteCompletedTasks())
			case len(args) == 1:
				if !a.store.DeleteTask(args[0]) {
					return fmt.Errorf("%w: %s", errTaskNotFound, args[0])
				}
				a.printf("deleted %s\n", args[0])
			default:
				return errors.New("task id, --completed or --all required")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "delete every completed task")
	cmd.Flags().BoolVar(&all, "all", false, "delete every task")
	cmd.MarkFlagsMutuallyExclusive("completed", "all")
	return cmd
}

func newSubtaskCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtask",
		Short: "Manage the checklist of a task",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <task-id> <title>",
			Short: "Append a subtask",
			Args:  cobra.MinimumNArgs(2),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				st, ok, err := a.store.AddSubTask(args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", errTaskNotFound, args[0])
				}
				a.printf("%s\t%s\n", st.ID, st.Title)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "toggle <task-id> <subtask-id>",
			Short: "Toggle a subtask",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				if !a.store.ToggleSubTask(args[0], args[1]) {
					return fmt.Errorf("subtask %s/%s not found", args[0], args[1])
				}
				a.printf("toggled %s\n", args[1])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <task-id> <subtask-id>",
			Short: "Delete a subtask",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				if !a.store.DeleteSubTask(args[0], args[1]) {
					return fmt.Errorf("subtask %s/%s not found", args[0], args[1])
				}
				a.printf("deleted %s\n", args[1])
				return nil
			}),
		},
	)
	return cmd
}

func newModeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mode [work|private]",
		Short: "Show or switch the current mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			if len(args) == 1 {
				if err := a.store.SetMode(domain.Mode(args[0])); err != nil {
					return err
				}
			}
			a.printf("%s\n", a.store.Mode())
			return nil
		}),
	}
}

func newLowEnergyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lowenergy [on|off]",
		Short: "Show or set the low energy flag",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			if len(args) == 1 {
				switch args[0] {
				case "on":
					a.store.SetLowEnergyMode(true)
				case "off":
					a.store.SetLowEnergyMode(false)
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
			}
			state := "off"
			if a.store.LowEnergyMode() {
				state = "on"
			}
			a.printf("low energy: %s\n", state)
			return nil
		}),
	}
}

func newBalanceCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show work/private progress and time balance",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
			r := a.store.Balance(time.Now())
			a.printf("work:    %d/%d done (%.0f%%)\t%s\n", r.Work.Completed, r.Work.Total, r.Work.Progress*100, core.FormatElapsed(r.WorkSeconds))
			a.printf("private: %d/%d done (%.0f%%)\t%s\n", r.Private.Completed, r.Private.Total, r.Private.Progress*100, core.FormatElapsed(r.PrivSeconds))
			a.printf("balance: %s (%.0f%% work)\n", r.Label, r.WorkRatio*100)
			return nil
		}),
	}
}
