package reconcile

import (
	"time"

	"github.com/vinayprograms/samaya/timer"
)

// DefaultMaxAway caps the time credited for a single absence.
const DefaultMaxAway = 24 * time.Hour

// Away returns now-lastObserved clamped to [0, max]. A zero lastObserved
// means no usable record and yields zero.
func Away(lastObserved, now time.Time, max time.Duration) time.Duration {
	if lastObserved.IsZero() {
		return 0
	}
	d := now.Sub(lastObserved)
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}

// Result describes a reconciliation.
type Result struct {
	Tasks       []timer.Task
	ActiveID    int64 // zero when nothing is running
	Deactivated []int64
	Credited    time.Duration // whole seconds added to the active task
	Report      Report
}

// Reconcile repairs tasks in place so at most one is active, then credits
// the away duration in whole seconds to the surviving active task, which
// stays active.
func Reconcile(tasks []timer.Task, lastObserved, now time.Time, max time.Duration) Result {
	kept, deactivated := timer.RepairActive(tasks)
	res := Result{Tasks: tasks, ActiveID: kept, Deactivated: deactivated}
	if kept == 0 {
		return res
	}

	secs := int64(Away(lastObserved, now, max) / time.Second)
	for i := range tasks {
		if tasks[i].ID != kept {
			continue
		}
		before := tasks[i].Elapsed
		tasks[i].Elapsed = timer.ClampElapsed(before + secs)
		res.Credited = time.Duration(tasks[i].Elapsed-before) * time.Second
		break
	}
	return res
}
