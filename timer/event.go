package timer

// EventKind names a store change.
type EventKind string

const (
	EventAdded        EventKind = "added"
	EventStarted      EventKind = "started"
	EventPaused       EventKind = "paused"
	EventReset        EventKind = "reset"
	EventDeleted      EventKind = "deleted"
	EventTick         EventKind = "tick"
	EventLimitReached EventKind = "limit_reached"
	EventFocusEntered EventKind = "focus_entered"
	EventFocusExited  EventKind = "focus_exited"
	EventRestored     EventKind = "restored"
	EventRepaired     EventKind = "repaired"
)

// Focus is the presentation focus mode. It has no effect on timing.
type Focus struct {
	Enabled bool  `json:"enabled"`
	TaskID  int64 `json:"taskId,omitempty"`
}

// Snapshot is a read-only copy of the store state.
type Snapshot struct {
	Tasks []Task `json:"tasks"`
	Stats Stats  `json:"stats"`
	Focus Focus  `json:"focus"`
}

// Active returns the active task, if any.
func (s Snapshot) Active() (Task, bool) {
	for _, t := range s.Tasks {
		if t.Active {
			return t, true
		}
	}
	return Task{}, false
}

// Find returns the task with the given id.
func (s Snapshot) Find(id int64) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Event is delivered to observers after a mutation.
type Event struct {
	Kind     EventKind `json:"kind"`
	TaskID   int64     `json:"taskId,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
}
