package core

import (
	"strings"
	"time"

	"twido/internal/rewards"
	"twido/pkg/domain"
)

// TaskUpdate carries the editable task fields. Nil fields are left unchanged.
type TaskUpdate struct {
	Title *string
	Size  *domain.Size
}

// CompletionOutcome describes a toggle-completion call.
type CompletionOutcome struct {
	Completed bool
	Shovels   int
	Pickaxes  int
	Notice    *domain.Notification
}

// AddTask appends a new task in the current mode.
func (s *Store) AddTask(title string, size domain.Size) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, domain.ErrEmptyTitle
	}
	if size == "" {
		size = domain.SizeM
	}
	if !size.Valid() {
		return domain.Task{}, domain.ErrInvalidSize
	}
	var created domain.Task
	s.mutate("add_task", func(d *domain.Document) []domain.Field {
		created = domain.Task{
			ID:       s.newID(s.now()),
			Title:    title,
			Type:     d.Mode,
			Size:     size,
			SubTasks: []domain.SubTask{},
		}
		d.Tasks = append(d.Tasks, created)
		return []domain.Field{domain.FieldTasks}
	})
	return created.Clone(), nil
}

// ToggleTaskCompletion flips the completed flag of task id. Completing a task
// stops its timer and applies the completion grant; tasks and garden are
// persisted as one write. Un-completing never revokes rewards.
func (s *Store) ToggleTaskCompletion(id string) (CompletionOutcome, bool) {
	var out CompletionOutcome
	now := s.now()
	today := s.today()
	_, ok := s.mutate("toggle_task_completion", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, id)
		if idx < 0 {
			return nil
		}
		task := &d.Tasks[idx]
		task.Completed = !task.Completed
		out.Completed = task.Completed
		if !task.Completed {
			return []domain.Field{domain.FieldTasks}
		}
		stopTimer(task, now)

		grant := s.rewards.GrantOnCompletion(task.Size, rewards.DailyGrant{
			Count: d.Garden.DailyShovelCount,
			Date:  d.Garden.LastShovelDate,
		}, today)
		d.Garden.Shovels += grant.Shovels
		d.Garden.Pickaxes += grant.Pickaxes
		d.Garden.DailyShovelCount = grant.Daily.Count
		d.Garden.LastShovelDate = grant.Daily.Date
		out.Shovels = grant.Shovels
		out.Pickaxes = grant.Pickaxes
		out.Notice = grant.Notice
		return []domain.Field{domain.FieldTasks, domain.FieldGarden}
	})
	if ok && out.Notice != nil {
		s.notifier.Notify(*out.Notice)
	}
	return out, ok
}

// ToggleTaskTimer starts or stops the timer of task id. Starting stops any
// other running task first, so at most one task runs after the call.
func (s *Store) ToggleTaskTimer(id string) bool {
	now := s.now()
	_, ok := s.mutate("toggle_task_timer", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, id)
		if idx < 0 {
			return nil
		}
		if d.Tasks[idx].IsRunning {
			stopTimer(&d.Tasks[idx], now)
			return []domain.Field{domain.FieldTasks}
		}
		for i := range d.Tasks {
			stopTimer(&d.Tasks[i], now)
		}
		start := now.UnixMilli()
		d.Tasks[idx].IsRunning = true
		d.Tasks[idx].StartTime = &start
		return []domain.Field{domain.FieldTasks}
	})
	return ok
}

// stopTimer folds the running segment into ElapsedTime. Stopped tasks are untouched.
func stopTimer(t *domain.Task, now time.Time) {
	if !t.IsRunning {
		return
	}
	t.ElapsedTime = t.ElapsedAt(now)
	t.IsRunning = false
	t.StartTime = nil
}

// DeleteTask removes task id.
func (s *Store) DeleteTask(id string) bool {
	_, ok := s.mutate("delete_task", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, id)
		if idx < 0 {
			return nil
		}
		d.Tasks = append(d.Tasks[:idx], d.Tasks[idx+1:]...)
		return []domain.Field{domain.FieldTasks}
	})
	return ok
}

// DeleteCompletedTasks removes every completed task and returns how many were removed.
func (s *Store) DeleteCompletedTasks() int {
	removed := 0
	s.mutate("delete_completed_tasks", func(d *domain.Document) []domain.Field {
		kept := make([]domain.Task, 0, len(d.Tasks))
		for _, t := range d.Tasks {
			if t.Completed {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		if removed == 0 {
			return nil
		}
		d.Tasks = kept
		return []domain.Field{domain.FieldTasks}
	})
	return removed
}

// ClearAllTasks empties the task list.
func (s *Store) ClearAllTasks() {
	s.mutate("clear_all_tasks", func(d *domain.Document) []domain.Field {
		d.Tasks = []domain.Task{}
		return []domain.Field{domain.FieldTasks}
	})
}

// UpdateTask shallow-merges title and size into task id.
func (s *Store) UpdateTask(id string, update TaskUpdate) (bool, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return false, domain.ErrEmptyTitle
	}
	if update.Size != nil && !update.Size.Valid() {
		return false, domain.ErrInvalidSize
	}
	_, ok := s.mutate("update_task", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, id)
		if idx < 0 {
			return nil
		}
		if update.Title != nil {
			d.Tasks[idx].Title = strings.TrimSpace(*update.Title)
		}
		if update.Size != nil {
			d.Tasks[idx].Size = *update.Size
		}
		return []domain.Field{domain.FieldTasks}
	})
	return ok, nil
}

// AddSubTask appends a subtask to task id.
func (s *Store) AddSubTask(taskID, title string) (domain.SubTask, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.SubTask{}, false, domain.ErrEmptyTitle
	}
	var created domain.SubTask
	_, ok := s.mutate("add_subtask", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, taskID)
		if idx < 0 {
			return nil
		}
		created = domain.SubTask{ID: s.newID(s.now()), Title: title}
		d.Tasks[idx].SubTasks = append(d.Tasks[idx].SubTasks, created)
		return []domain.Field{domain.FieldTasks}
	})
	return created, ok, nil
}

// ToggleSubTask flips the completed flag of a subtask.
func (s *Store) ToggleSubTask(taskID, subTaskID string) bool {
	_, ok := s.mutate("toggle_subtask", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, taskID)
		if idx < 0 {
			return nil
		}
		for i := range d.Tasks[idx].SubTasks {
			if d.Tasks[idx].SubTasks[i].ID == subTaskID {
				d.Tasks[idx].SubTasks[i].Completed = !d.Tasks[idx].SubTasks[i].Completed
				return []domain.Field{domain.FieldTasks}
			}
		}
		return nil
	})
	return ok
}

// DeleteSubTask removes a subtask.
func (s *Store) DeleteSubTask(taskID, subTaskID string) bool {
	_, ok := s.mutate("delete_subtask", func(d *domain.Document) []domain.Field {
		idx := findTask(d.Tasks, taskID)
		if idx < 0 {
			return nil
		}
		subs := d.Tasks[idx].SubTasks
		for i := range subs {
			if subs[i].ID == subTaskID {
				d.Tasks[idx].SubTasks = append(subs[:i], subs[i+1:]...)
				return []domain.Field{domain.FieldTasks}
			}
		}
		return nil
	})
	return ok
}

// Tasks returns every task in insertion order.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneTasks(s.doc.Tasks)
}

// Task looks up a single task.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := findTask(s.doc.Tasks, id)
	if idx < 0 {
		return domain.Task{}, false
	}
	return s.doc.Tasks[idx].Clone(), true
}

// TasksForMode returns the open tasks of mode in insertion order.
func (s *Store) TasksForMode(mode domain.Mode) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Task{}
	for _, t := range s.doc.Tasks {
		if t.Type == mode && !t.Completed {
			out = append(out, t.Clone())
		}
	}
	return out
}

// CompletedTasks returns completed tasks, most recently created first.
func (s *Store) CompletedTasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Task{}
	for i := len(s.doc.Tasks) - 1; i >= 0; i-- {
		if s.doc.Tasks[i].Completed {
			out = append(out, s.doc.Tasks[i].Clone())
		}
	}
	return out
}

// RunningTask returns the task whose timer is running, if any.
func (s *Store) RunningTask() (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.doc.Tasks {
		if t.IsRunning {
			return t.Clone(), true
		}
	}
	return domain.Task{}, false
}

func findTask(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
