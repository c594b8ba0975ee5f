// Package domain defines the persistent entities, value types and backend
// contracts shared by the twido state store and its persistence adapters.
package domain

import "time"

// Mode is the global work/private context that scopes task visibility.
type Mode string

// Supported modes.
const (
	ModeWork    Mode = "work"
	ModePrivate Mode = "private"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeWork || m == ModePrivate
}

// Opposite returns the other mode.
func (m Mode) Opposite() Mode {
	if m == ModeWork {
		return ModePrivate
	}
	return ModeWork
}

// Size classifies the effort of a task.
type Size string

// Task sizes. Size L always earns a pickaxe when its completion grants a shovel.
const (
	SizeS Size = "S"
	SizeM Size = "M"
	SizeL Size = "L"
)

// Valid reports whether s is a known size.
func (s Size) Valid() bool {
	switch s {
	case SizeS, SizeM, SizeL:
		return true
	default:
		return false
	}
}

// SubTask is owned by exactly one Task and has no independent lifecycle.
type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task is a user task with an optional running timer.
//
// When IsRunning is true StartTime holds the epoch milliseconds at which the
// current timing segment began; otherwise StartTime is nil and ElapsedTime
// carries the cumulative total in seconds.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Completed   bool      `json:"completed"`
	Type        Mode      `json:"type"`
	ElapsedTime float64   `json:"elapsedTime"`
	IsRunning   bool      `json:"isRunning"`
	StartTime   *int64    `json:"startTime,omitempty"`
	Size        Size      `json:"size"`
	SubTasks    []SubTask `json:"subTasks"`
}

// ElapsedAt returns the cumulative seconds including the in-flight segment.
func (t Task) ElapsedAt(now time.Time) float64 {
	if !t.IsRunning || t.StartTime == nil {
		return t.ElapsedTime
	}
	segment := float64(now.UnixMilli()-*t.StartTime) / 1000
	if segment < 0 {
		segment = 0
	}
	return t.ElapsedTime + segment
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	cp := t
	if t.StartTime != nil {
		start := *t.StartTime
		cp.StartTime = &start
	}
	if t.SubTasks != nil {
		cp.SubTasks = append([]SubTask(nil), t.SubTasks...)
	}
	return cp
}

// CloneTasks deep copies a task list, preserving nil-ness.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
