package timer

// Stats summarises the collection.
type Stats struct {
	Total        int   `json:"total"`
	Active       int   `json:"active"`
	TotalElapsed int64 `json:"totalElapsed"`
}

// Aggregate computes Stats. Each task contributes at most MaxElapsed.
func Aggregate(tasks []Task) Stats {
	st := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Active {
			st.Active++
		}
		st.TotalElapsed += ClampElapsed(t.Elapsed)
	}
	return st
}

// RepairActive enforces the single-active rule in place: the first active
// task in slice order stays active and every later one is deactivated.
// It returns the id kept (zero if none) and the ids deactivated.
func RepairActive(tasks []Task) (kept int64, deactivated []int64) {
	for i := range tasks {
		if !tasks[i].Active {
			continue
		}
		if kept == 0 {
			kept = tasks[i].ID
			continue
		}
		tasks[i].Active = false
		deactivated = append(deactivated, tasks[i].ID)
	}
	return kept, deactivated
}
