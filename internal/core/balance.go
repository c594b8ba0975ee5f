package core

import (
	"fmt"
	"math"
	"time"

	"twido/pkg/domain"
)

// Balance labels derived from the work time ratio.
const (
	BalancePerfect         = "Perfectly Balanced"
	BalanceWorkHeavy       = "Work Heavy"
	BalanceWorkOverload    = "Work Overload"
	BalancePrivateHeavy    = "Private Heavy"
	BalancePrivateOverload = "Private Overload"
)

// ModeProgress is the completion progress of one mode.
type ModeProgress struct {
	Total     int
	Completed int
	Progress  float64
}

// BalanceReport summarizes the work/private split.
type BalanceReport struct {
	Work        ModeProgress
	Private     ModeProgress
	WorkSeconds float64
	PrivSeconds float64
	WorkRatio   float64
	Label       string
}

// Balance computes per-mode completion progress and the time-based work ratio
// at now. Running tasks contribute their in-flight segment.
func (s *Store) Balance(now time.Time) BalanceReport {
	s.mu.Lock()
	tasks := domain.CloneTasks(s.doc.Tasks)
	s.mu.Unlock()
	return ComputeBalance(tasks, now)
}

// ComputeBalance is the pure form of Store.Balance.
func ComputeBalance(tasks []domain.Task, now time.Time) BalanceReport {
	var r BalanceReport
	for _, t := range tasks {
		p := &r.Private
		if t.Type == domain.ModeWork {
			p = &r.Work
			r.WorkSeconds += t.ElapsedAt(now)
		} else {
			r.PrivSeconds += t.ElapsedAt(now)
		}
		p.Total++
		if t.Completed {
			p.Completed++
		}
	}
	for _, p := range []*ModeProgress{&r.Work, &r.Private} {
		if p.Total > 0 {
			p.Progress = float64(p.Completed) / float64(p.Total)
		}
	}
	r.WorkRatio = 0.5
	if total := r.WorkSeconds + r.PrivSeconds; total > 0 {
		r.WorkRatio = r.WorkSeconds / total
	}
	r.Label = balanceLabel(r.WorkRatio)
	return r
}

func balanceLabel(ratio float64) string {
	switch {
	case ratio > 0.8:
		return BalanceWorkOverload
	case ratio > 0.6:
		return BalanceWorkHeavy
	case ratio < 0.2:
		return BalancePrivateOverload
	case ratio < 0.4:
		return BalancePrivateHeavy
	default:
		return BalancePerfect
	}
}

// FormatElapsed renders seconds as "1h 2m 3s", omitting leading zero units.
func FormatElapsed(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	switch {
	case hrs > 0:
		return fmt.Sprintf("%dh %dm %ds", hrs, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// VisibleTasks returns the open tasks of the current mode. In low-energy mode
// only small tasks are listed.
func (s *Store) VisibleTasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Task{}
	for _, t := range s.doc.Tasks {
		if t.Completed || t.Type != s.doc.Mode {
			continue
		}
		if s.doc.IsLowEnergyMode && t.Size != domain.SizeS {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}
