package timer

import (
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/logging"
)

// DefaultTickInterval is how often the active task accrues one second.
const DefaultTickInterval = time.Second

// Store exclusively owns the task collection.
type Store struct {
	mu       sync.Mutex
	tasks    []Task // creation order
	lastID   int64
	focus    Focus
	accruals map[int64]*accrual
	pending  []Event
	sealed   int // pending[:sealed] carry their final snapshot
	closed   bool

	clock        func() time.Time
	tickInterval time.Duration
	observers    []func(Event)
	logger       *logging.Logger

	// dispatchMu serialises observer delivery.
	dispatchMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used to mint ids and creation times.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithTickInterval sets the accrual tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithObserver registers a function called after every mutation.
// Observers run outside the store mutex, one event at a time, in mutation
// order. They may call back into the store.
func WithObserver(fn func(Event)) Option {
	return func(s *Store) {
		s.observers = append(s.observers, fn)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		accruals:     make(map[int64]*accrual),
		clock:        time.Now,
		tickInterval: DefaultTickInterval,
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("timer")
	return s
}

// indexLocked returns the slice index of id, or -1.
func (s *Store) indexLocked(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) activeIndexLocked() int {
	for i := range s.tasks {
		if s.tasks[i].Active {
			return i
		}
	}
	return -1
}

// mintIDLocked returns max(lastID+1, now in unix milliseconds).
func (s *Store) mintIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) duplicateLocked(name string) (Task, bool) {
	for _, t := range s.tasks {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Task{}, false
}

// emitLocked queues an event. Its snapshot is taken when the intent
// finishes, so observers never see an intermediate state.
func (s *Store) emitLocked(kind EventKind, id int64) {
	if len(s.observers) == 0 {
		return
	}
	s.pending = append(s.pending, Event{Kind: kind, TaskID: id})
}

func (s *Store) sealLocked() {
	if s.sealed == len(s.pending) {
		return
	}
	snap := s.snapshotLocked()
	for i := s.sealed; i < len(s.pending); i++ {
		s.pending[i].Snapshot = snap
	}
	s.sealed = len(s.pending)
}

// unlockAndDispatch ends an intent: it seals queued events, releases the
// mutex and delivers them.
func (s *Store) unlockAndDispatch() {
	s.sealLocked()
	s.mu.Unlock()
	s.dispatch()
}

// dispatch delivers pending events. Whoever holds dispatchMu drains the
// queue, so a reentrant call from an observer returns immediately.
func (s *Store) dispatch() {
	for {
		if !s.dispatchMu.TryLock() {
			return
		}
		for {
			s.mu.Lock()
			batch := s.pending[:s.sealed]
			s.pending = s.pending[s.sealed:]
			s.sealed = 0
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				for _, fn := range s.observers {
					fn(ev)
				}
			}
		}
		s.dispatchMu.Unlock()

		s.mu.Lock()
		more := len(s.pending) > 0
		s.mu.Unlock()
		if !more {
			return
		}
	}
}

// ProposeAdd validates name without adding anything.
func (s *Store) ProposeAdd(name string) (Proposal, error) {
	trimmed, err := ValidateName(name)
	if err != nil {
		return Proposal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) >= MaxTasks {
		return Proposal{}, errors.FromCode(errors.ErrCodeCapacity)
	}
	if dup, ok := s.duplicateLocked(trimmed); ok {
		return Proposal{
			Requirement:  RequireDuplicateConfirmation,
			ConflictID:   dup.ID,
			ConflictName: dup.Name,
		}, nil
	}
	return Proposal{}, nil
}

// Add appends a new inactive task. A case-insensitive duplicate name is
// rejected unless confirmed is true.
func (s *Store) Add(name string, confirmed bool) (Task, error) {
	trimmed, err := ValidateName(name)
	if err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	if len(s.tasks) >= MaxTasks {
		s.mu.Unlock()
		return Task{}, errors.FromCode(errors.ErrCodeCapacity)
	}
	if dup, ok := s.duplicateLocked(trimmed); ok && !confirmed {
		s.mu.Unlock()
		return Task{}, errors.FromCode(errors.ErrCodeDuplicate,
			errors.WithTaskID(dup.ID),
			errors.WithMetadata("name", dup.Name))
	}

	now := s.clock()
	t := Task{
		ID:        s.mintIDLocked(now),
		Name:      trimmed,
		CreatedAt: CreationTime(now),
	}
	s.tasks = append(s.tasks, t)
	s.logger.TaskTransition(string(EventAdded), t.ID, 0)
	s.emitLocked(EventAdded, t.ID)
	s.unlockAndDispatch()
	return t, nil
}

// ProposeStart reports whether starting id would pause another task.
func (s *Store) ProposeStart(id int64) (Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Proposal{}, errors.NotFound(id)
	}
	if s.tasks[i].Active {
		return Proposal{}, nil
	}
	if a := s.activeIndexLocked(); a >= 0 {
		return Proposal{
			Requirement:  RequirePauseConfirmation,
			ConflictID:   s.tasks[a].ID,
			ConflictName: s.tasks[a].Name,
		}, nil
	}
	return Proposal{}, nil
}

// Start makes id the only active task. Starting the active task is a no-op.
func (s *Store) Start(id int64) error {
	s.mu.Lock()

	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return errors.NotFound(id)
	}
	if s.tasks[i].Active {
		if _, ok := s.accruals[id]; !ok {
			s.startAccrualLocked(id)
		}
		s.mu.Unlock()
		return nil
	}
	if s.tasks[i].Elapsed >= MaxElapsed {
		s.mu.Unlock()
		return errors.InvalidInput("task has reached the time limit", errors.WithTaskID(id))
	}

	for j := range s.tasks {
		if j != i && s.tasks[j].Active {
			s.pauseLocked(j)
		}
	}
	s.tasks[i].Active = true
	s.startAccrualLocked(id)
	s.logger.TaskTransition(string(EventStarted), id, s.tasks[i].Elapsed)
	s.emitLocked(EventStarted, id)
	s.unlockAndDispatch()
	return nil
}

// pauseLocked deactivates tasks[i] and stops its accrual.
func (s *Store) pauseLocked(i int) {
	t := &s.tasks[i]
	t.Active = false
	s.stopAccrualLocked(t.ID)
	s.logger.TaskTransition(string(EventPaused), t.ID, t.Elapsed)
	s.emitLocked(EventPaused, t.ID)
}

// Pause deactivates id. Pausing an inactive task is a no-op.
func (s *Store) Pause(id int64) error {
	s.mu.Lock()

	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return errors.NotFound(id)
	}
	if !s.tasks[i].Active {
		s.mu.Unlock()
		return nil
	}
	s.pauseLocked(i)
	s.unlockAndDispatch()
	return nil
}

// Reset pauses id if needed and zeroes its elapsed time.
func (s *Store) Reset(id int64) error {
	s.mu.Lock()

	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return errors.NotFound(id)
	}
	if s.tasks[i].Active {
		s.pauseLocked(i)
	}
	s.tasks[i].Elapsed = 0
	s.logger.TaskTransition(string(EventReset), id, 0)
	s.emitLocked(EventReset, id)
	s.unlockAndDispatch()
	return nil
}

// Delete pauses id if needed and removes it. Focus on id is cleared.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()

	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return errors.NotFound(id)
	}
	if s.tasks[i].Active {
		s.pauseLocked(i)
	}
	if s.focus.Enabled && s.focus.TaskID == id {
		s.focus = Focus{}
		s.emitLocked(EventFocusExited, id)
	}
	elapsed := s.tasks[i].Elapsed
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.logger.TaskTransition(string(EventDeleted), id, elapsed)
	s.emitLocked(EventDeleted, id)
	s.unlockAndDispatch()
	return nil
}

// EnterFocus puts the presentation into focus mode on id.
func (s *Store) EnterFocus(id int64) error {
	s.mu.Lock()

	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return errors.NotFound(id)
	}
	s.focus = Focus{Enabled: true, TaskID: id}
	s.emitLocked(EventFocusEntered, id)
	s.unlockAndDispatch()
	return nil
}

// ExitFocus leaves focus mode. It is a no-op when focus is off.
func (s *Store) ExitFocus() {
	s.mu.Lock()
	if !s.focus.Enabled {
		s.mu.Unlock()
		return
	}
	id := s.focus.TaskID
	s.focus = Focus{}
	s.emitLocked(EventFocusExited, id)
	s.unlockAndDispatch()
}

// Get returns a copy of task id.
func (s *Store) Get(id int64) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Task{}, errors.NotFound(id)
	}
	return s.tasks[i], nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.unlockAndDispatch()
	return snap
}

// snapshotLocked copies the collection and aggregates it. A collection found
// with more than one active task is repaired first.
func (s *Store) snapshotLocked() Snapshot {
	if Aggregate(s.tasks).Active > 1 {
		s.repairLocked()
	}
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	return Snapshot{
		Tasks: tasks,
		Stats: Aggregate(tasks),
		Focus: s.focus,
	}
}

func (s *Store) repairLocked() {
	kept, deactivated := RepairActive(s.tasks)
	if len(deactivated) == 0 {
		return
	}
	for _, id := range deactivated {
		s.stopAccrualLocked(id)
	}
	s.logger.Repaired(kept, deactivated)
	s.emitLocked(EventRepaired, kept)
}

// Restore replaces the collection, typically with reconciled persisted
// state. The first active task keeps running with a fresh accrual process.
// Focus on an id not in tasks is dropped. Restored ids are never minted again.
func (s *Store) Restore(tasks []Task, focus Focus) {
	s.mu.Lock()

	s.stopAllAccrualsLocked()
	s.tasks = make([]Task, len(tasks))
	copy(s.tasks, tasks)
	if len(s.tasks) > MaxTasks {
		s.tasks = s.tasks[:MaxTasks]
	}
	for i := range s.tasks {
		s.tasks[i].Elapsed = ClampElapsed(s.tasks[i].Elapsed)
		if s.tasks[i].ID > s.lastID {
			s.lastID = s.tasks[i].ID
		}
	}
	s.repairLocked()

	if focus.Enabled && s.indexLocked(focus.TaskID) < 0 {
		s.logger.Warn("focus_dropped", logging.Fields{"task": focus.TaskID})
		focus = Focus{}
	}
	if !focus.Enabled {
		focus.TaskID = 0
	}
	s.focus = focus

	if a := s.activeIndexLocked(); a >= 0 {
		if s.tasks[a].Elapsed >= MaxElapsed {
			s.tasks[a].Active = false
		} else {
			s.startAccrualLocked(s.tasks[a].ID)
		}
	}
	s.emitLocked(EventRestored, 0)
	s.unlockAndDispatch()
}

// Close stops every accrual process. Further starts do not accrue.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopAllAccrualsLocked()
	s.mu.Unlock()
}
