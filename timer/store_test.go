package timer

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/samaya/errors"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 589_793_238, time.UTC)

func fixedClock() time.Time { return testNow }

// newTestStore returns a store whose background ticker never fires during a
// test; accrual is driven through AccrueOneSecond.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock), WithTickInterval(time.Hour)}, opts...)
	s := NewStore(opts...)
	t.Cleanup(s.Close)
	return s
}

func mustAdd(t *testing.T, s *Store, name string) Task {
	t.Helper()
	task, err := s.Add(name, false)
	if err != nil {
		t.Fatalf("Add(%q) failed: %v", name, err)
	}
	return task
}

func activeCount(s *Store) int {
	return s.Snapshot().Stats.Active
}

// ============================================================================
// Add
// ============================================================================

func TestAdd(t *testing.T) {
	s := newTestStore(t)

	task, err := s.Add("  Write report  ", false)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if task.Name != "Write report" {
		t.Errorf("Name = %q, want %q", task.Name, "Write report")
	}
	if task.ID != testNow.UnixMilli() {
		t.Errorf("ID = %d, want %d", task.ID, testNow.UnixMilli())
	}
	if task.Active || task.Elapsed != 0 {
		t.Errorf("new task = %+v, want inactive with zero elapsed", task)
	}
	if !task.CreatedAt.Equal(testNow.Truncate(time.Millisecond)) {
		t.Errorf("CreatedAt = %v, want millisecond precision of %v", task.CreatedAt, testNow)
	}
}

func TestAdd_NameLength(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "   \t", true},
		{"one char", "x", false},
		{"50 chars", strings.Repeat("a", 50), false},
		{"51 chars", strings.Repeat("a", 51), true},
		{"50 runes multibyte", strings.Repeat("é", 50), false},
		{"padded 50", "  " + strings.Repeat("b", 50) + "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			_, err := s.Add(tt.input, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Add error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Code = %v, want %v", errors.Code(err), errors.ErrCodeInvalidInput)
			}
			wantTotal := 1
			if tt.wantErr {
				wantTotal = 0
			}
			if got := s.Snapshot().Stats.Total; got != wantTotal {
				t.Errorf("Total = %d, want %d", got, wantTotal)
			}
		})
	}
}

func TestAdd_Duplicate(t *testing.T) {
	s := newTestStore(t)
	first := mustAdd(t, s, "Email")

	p, err := s.ProposeAdd("  EMAIL ")
	if err != nil {
		t.Fatalf("ProposeAdd failed: %v", err)
	}
	if p.Requirement != RequireDuplicateConfirmation {
		t.Errorf("Requirement = %q, want %q", p.Requirement, RequireDuplicateConfirmation)
	}
	if p.ConflictID != first.ID || p.ConflictName != "Email" {
		t.Errorf("conflict = (%d, %q), want (%d, %q)", p.ConflictID, p.ConflictName, first.ID, "Email")
	}

	_, err = s.Add("email", false)
	if !errors.Is(err, errors.ErrCodeDuplicate) {
		t.Fatalf("Add unconfirmed error = %v, want DUPLICATE", err)
	}
	if got := s.Snapshot().Stats.Total; got != 1 {
		t.Errorf("Total after declined duplicate = %d, want 1", got)
	}

	second, err := s.Add("email", true)
	if err != nil {
		t.Fatalf("Add confirmed failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("confirmed duplicate must get a fresh id")
	}
}

func TestProposeAdd_NoRequirement(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, "a")

	p, err := s.ProposeAdd("b")
	if err != nil {
		t.Fatalf("ProposeAdd failed: %v", err)
	}
	if p.NeedsConfirmation() {
		t.Errorf("NeedsConfirmation() = true for %+v", p)
	}
	if _, err := s.ProposeAdd(""); !errors.IsValidation(err) {
		t.Errorf("ProposeAdd(\"\") error = %v, want validation", err)
	}
}

func TestAdd_Capacity(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < MaxTasks; i++ {
		if _, err := s.Add("task", true); err != nil {
			t.Fatalf("Add #%d failed: %v", i, err)
		}
	}

	_, err := s.Add("one more", false)
	if !errors.Is(err, errors.ErrCodeCapacity) {
		t.Errorf("Add error = %v, want CAPACITY", err)
	}
	if _, err := s.ProposeAdd("one more"); !errors.Is(err, errors.ErrCodeCapacity) {
		t.Errorf("ProposeAdd error = %v, want CAPACITY", err)
	}
	if got := s.Snapshot().Stats.Total; got != MaxTasks {
		t.Errorf("Total = %d, want %d", got, MaxTasks)
	}
}

func TestAdd_IDsUniqueAndNeverReused(t *testing.T) {
	s := newTestStore(t)

	a := mustAdd(t, s, "a")
	b := mustAdd(t, s, "b")
	if b.ID != a.ID+1 {
		t.Errorf("second id = %d, want %d (same millisecond)", b.ID, a.ID+1)
	}

	if err := s.Delete(b.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	c := mustAdd(t, s, "c")
	if c.ID <= b.ID {
		t.Errorf("id after delete = %d, want > %d", c.ID, b.ID)
	}
}

func TestAdd_IDFollowsClock(t *testing.T) {
	now := testNow
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	a := mustAdd(t, s, "a")
	now = now.Add(time.Minute)
	b := mustAdd(t, s, "b")

	if b.ID != now.UnixMilli() {
		t.Errorf("ID = %d, want %d", b.ID, now.UnixMilli())
	}
	if b.ID <= a.ID {
		t.Errorf("ids not increasing: %d then %d", a.ID, b.ID)
	}
}

// ============================================================================
// Start / Pause
// ============================================================================

func TestStart_SingleActive(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	b := mustAdd(t, s, "b")

	if err := s.Start(a.ID); err != nil {
		t.Fatalf("Start(a) failed: %v", err)
	}
	p, err := s.ProposeStart(b.ID)
	if err != nil {
		t.Fatalf("ProposeStart failed: %v", err)
	}
	if p.Requirement != RequirePauseConfirmation || p.ConflictID != a.ID {
		t.Errorf("proposal = %+v, want pause confirmation for %d", p, a.ID)
	}

	if err := s.Start(b.ID); err != nil {
		t.Fatalf("Start(b) failed: %v", err)
	}
	snap := s.Snapshot()
	if snap.Stats.Active != 1 {
		t.Fatalf("Active = %d, want 1", snap.Stats.Active)
	}
	if active, _ := snap.Active(); active.ID != b.ID {
		t.Errorf("active = %d, want %d", active.ID, b.ID)
	}
}

func TestStart_AlreadyActiveIsNoop(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	s.Start(a.ID)
	s.AccrueOneSecond(a.ID)

	p, err := s.ProposeStart(a.ID)
	if err != nil || p.NeedsConfirmation() {
		t.Errorf("ProposeStart(active) = %+v, %v; want no requirement", p, err)
	}
	if err := s.Start(a.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	got, _ := s.Get(a.ID)
	if !got.Active || got.Elapsed != 1 {
		t.Errorf("task = %+v, want active with elapsed 1", got)
	}
}

func TestStart_AtLimit(t *testing.T) {
	s := newTestStore(t)
	s.Restore([]Task{{ID: 1, Name: "full", Elapsed: MaxElapsed}}, Focus{})

	if err := s.Start(1); !errors.IsValidation(err) {
		t.Errorf("Start error = %v, want validation", err)
	}
	if activeCount(s) != 0 {
		t.Error("task at limit must stay inactive")
	}
}

func TestPause_Idempotent(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	s.Start(a.ID)
	s.AccrueOneSecond(a.ID)

	for i := 0; i < 3; i++ {
		if err := s.Pause(a.ID); err != nil {
			t.Fatalf("Pause #%d failed: %v", i, err)
		}
	}
	got, _ := s.Get(a.ID)
	if got.Active || got.Elapsed != 1 {
		t.Errorf("task = %+v, want inactive with elapsed 1", got)
	}

	// Accrual on a paused task has no effect.
	s.AccrueOneSecond(a.ID)
	got, _ = s.Get(a.ID)
	if got.Elapsed != 1 {
		t.Errorf("Elapsed = %d after accrual while paused, want 1", got.Elapsed)
	}
}

func TestUnknownID(t *testing.T) {
	s := newTestStore(t)
	const missing = 12345

	ops := map[string]func() error{
		"Start":      func() error { return s.Start(missing) },
		"Pause":      func() error { return s.Pause(missing) },
		"Reset":      func() error { return s.Reset(missing) },
		"Delete":     func() error { return s.Delete(missing) },
		"EnterFocus": func() error { return s.EnterFocus(missing) },
		"ProposeStart": func() error {
			_, err := s.ProposeStart(missing)
			return err
		},
		"Get": func() error {
			_, err := s.Get(missing)
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if !errors.IsNotFound(err) {
				t.Errorf("error = %v, want not found", err)
			}
			if e := errors.As(err); e == nil || e.TaskID() != missing {
				t.Errorf("error should carry task id %d", missing)
			}
		})
	}
}

// ============================================================================
// Accrual
// ============================================================================

func TestAccrue_TenSeconds(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	s.Start(a.ID)

	for i := 0; i < 10; i++ {
		s.AccrueOneSecond(a.ID)
	}

	snap := s.Snapshot()
	got, _ := snap.Find(a.ID)
	if got.Elapsed != 10 {
		t.Errorf("Elapsed = %d, want 10", got.Elapsed)
	}
	if snap.Stats.TotalElapsed != 10 {
		t.Errorf("TotalElapsed = %d, want 10", snap.Stats.TotalElapsed)
	}
	if got.Duration() != 10*time.Second {
		t.Errorf("Duration() = %v, want 10s", got.Duration())
	}
}

func TestAccrue_SwitchTasks(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	b := mustAdd(t, s, "b")

	s.Start(a.ID)
	for i := 0; i < 5; i++ {
		s.AccrueOneSecond(a.ID)
	}
	s.Start(b.ID)
	for i := 0; i < 3; i++ {
		s.AccrueOneSecond(a.ID) // stale, a is paused
		s.AccrueOneSecond(b.ID)
	}

	snap := s.Snapshot()
	ta, _ := snap.Find(a.ID)
	tb, _ := snap.Find(b.ID)
	if ta.Elapsed != 5 || ta.Active {
		t.Errorf("a = %+v, want paused at 5", ta)
	}
	if tb.Elapsed != 3 || !tb.Active {
		t.Errorf("b = %+v, want active at 3", tb)
	}
	if snap.Stats.TotalElapsed != 8 {
		t.Errorf("TotalElapsed = %d, want 8", snap.Stats.TotalElapsed)
	}
}

func TestAccrue_LimitReached(t *testing.T) {
	var mu sync.Mutex
	var kinds []EventKind
	s := newTestStore(t, WithObserver(func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	}))
	s.Restore([]Task{{ID: 7, Name: "almost", Elapsed: MaxElapsed - 1, Active: true}}, Focus{})

	s.AccrueOneSecond(7)
	got, _ := s.Get(7)
	if got.Elapsed != MaxElapsed {
		t.Errorf("Elapsed = %d, want %d", got.Elapsed, MaxElapsed)
	}
	if got.Active {
		t.Error("task should be force-paused at the limit")
	}

	s.AccrueOneSecond(7)
	got, _ = s.Get(7)
	if got.Elapsed != MaxElapsed {
		t.Errorf("Elapsed after extra accrual = %d, want %d", got.Elapsed, MaxElapsed)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) == 0 || kinds[len(kinds)-1] != EventLimitReached {
		t.Errorf("events = %v, want trailing %s", kinds, EventLimitReached)
	}
}

func TestAccrue_RealTicker(t *testing.T) {
	s := NewStore(WithClock(fixedClock), WithTickInterval(5*time.Millisecond))
	defer s.Close()

	a := mustAdd(t, s, "a")
	s.Start(a.ID)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := s.Get(a.ID)
		if got.Elapsed >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Elapsed = %d after 2s, want >= 3", got.Elapsed)
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Pause(a.ID)
	paused, _ := s.Get(a.ID)
	time.Sleep(30 * time.Millisecond)
	after, _ := s.Get(a.ID)
	if after.Elapsed != paused.Elapsed {
		t.Errorf("Elapsed grew while paused: %d -> %d", paused.Elapsed, after.Elapsed)
	}
}

func TestAccrue_CloseStopsTicking(t *testing.T) {
	s := NewStore(WithClock(fixedClock), WithTickInterval(5*time.Millisecond))
	a := mustAdd(t, s, "a")
	s.Start(a.ID)
	s.Close()

	before, _ := s.Get(a.ID)
	time.Sleep(30 * time.Millisecond)
	after, _ := s.Get(a.ID)
	if after.Elapsed != before.Elapsed {
		t.Errorf("Elapsed grew after Close: %d -> %d", before.Elapsed, after.Elapsed)
	}
}

// ============================================================================
// Reset / Delete / Focus
// ============================================================================

func TestReset_Active(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	s.Start(a.ID)
	s.AccrueOneSecond(a.ID)
	s.AccrueOneSecond(a.ID)

	if err := s.Reset(a.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	got, _ := s.Get(a.ID)
	if got.Active || got.Elapsed != 0 {
		t.Errorf("task = %+v, want inactive with elapsed 0", got)
	}
	s.AccrueOneSecond(a.ID)
	got, _ = s.Get(a.ID)
	if got.Elapsed != 0 {
		t.Errorf("Elapsed = %d after reset, want 0", got.Elapsed)
	}
}

func TestDelete_FocusedActive(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	b := mustAdd(t, s, "b")
	s.Start(a.ID)
	if err := s.EnterFocus(a.ID); err != nil {
		t.Fatalf("EnterFocus failed: %v", err)
	}

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	snap := s.Snapshot()
	if _, ok := snap.Find(a.ID); ok {
		t.Error("deleted task still present")
	}
	if snap.Focus.Enabled {
		t.Errorf("Focus = %+v, want disabled", snap.Focus)
	}
	if snap.Stats.Active != 0 || snap.Stats.Total != 1 {
		t.Errorf("Stats = %+v, want 1 task, none active", snap.Stats)
	}
	if snap.Tasks[0].ID != b.ID {
		t.Errorf("remaining task = %d, want %d", snap.Tasks[0].ID, b.ID)
	}
}

func TestDelete_KeepsOtherFocus(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")
	b := mustAdd(t, s, "b")
	s.EnterFocus(b.ID)

	s.Delete(a.ID)

	if f := s.Snapshot().Focus; !f.Enabled || f.TaskID != b.ID {
		t.Errorf("Focus = %+v, want enabled on %d", f, b.ID)
	}
}

func TestFocus(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")

	s.ExitFocus() // no-op
	if err := s.EnterFocus(a.ID); err != nil {
		t.Fatalf("EnterFocus failed: %v", err)
	}
	if f := s.Snapshot().Focus; !f.Enabled || f.TaskID != a.ID {
		t.Errorf("Focus = %+v, want enabled on %d", f, a.ID)
	}
	got, _ := s.Get(a.ID)
	if got.Active {
		t.Error("focus must not start the timer")
	}

	s.ExitFocus()
	if f := s.Snapshot().Focus; f.Enabled || f.TaskID != 0 {
		t.Errorf("Focus = %+v, want zero", f)
	}
}

// ============================================================================
// Snapshots, restore and observers
// ============================================================================

func TestSnapshot_IsCopy(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "a")

	snap := s.Snapshot()
	snap.Tasks[0].Name = "mutated"
	snap.Tasks[0].Elapsed = 99

	got, _ := s.Get(a.ID)
	if got.Name != "a" || got.Elapsed != 0 {
		t.Errorf("store changed through snapshot: %+v", got)
	}
}

func TestSnapshot_CreationOrder(t *testing.T) {
	s := newTestStore(t)
	for _, n := range []string{"c", "a", "b"} {
		mustAdd(t, s, n)
	}

	var names []string
	for _, task := range s.Snapshot().Tasks {
		names = append(names, task.Name)
	}
	if strings.Join(names, "") != "cab" {
		t.Errorf("order = %v, want [c a b]", names)
	}
}

func TestRestore_RepairsTwoActive(t *testing.T) {
	s := newTestStore(t)
	s.Restore([]Task{
		{ID: 1, Name: "a", Elapsed: 5},
		{ID: 2, Name: "b", Elapsed: 6, Active: true},
		{ID: 3, Name: "c", Elapsed: 7, Active: true},
	}, Focus{})

	snap := s.Snapshot()
	if snap.Stats.Active != 1 {
		t.Fatalf("Active = %d, want 1", snap.Stats.Active)
	}
	if active, _ := snap.Active(); active.ID != 2 {
		t.Errorf("active = %d, want first active 2", active.ID)
	}
	if snap.Stats.TotalElapsed != 18 {
		t.Errorf("TotalElapsed = %d, want 18", snap.Stats.TotalElapsed)
	}

	// The survivor keeps accruing.
	s.AccrueOneSecond(2)
	if got, _ := s.Get(2); got.Elapsed != 7 {
		t.Errorf("Elapsed = %d, want 7", got.Elapsed)
	}
}

func TestRestore_FocusAndIDs(t *testing.T) {
	s := newTestStore(t)
	future := testNow.UnixMilli() + 1_000_000

	s.Restore([]Task{{ID: future, Name: "x"}}, Focus{Enabled: true, TaskID: 42})

	if f := s.Snapshot().Focus; f.Enabled {
		t.Errorf("focus on unknown id should be dropped, got %+v", f)
	}
	next := mustAdd(t, s, "y")
	if next.ID <= future {
		t.Errorf("minted id %d reuses restored range (max %d)", next.ID, future)
	}

	s.Restore([]Task{{ID: future, Name: "x"}}, Focus{Enabled: true, TaskID: future})
	if f := s.Snapshot().Focus; !f.Enabled || f.TaskID != future {
		t.Errorf("Focus = %+v, want enabled on %d", f, future)
	}
}

func TestObserver_SeesFinalState(t *testing.T) {
	var events []Event
	s := newTestStore(t, WithObserver(func(ev Event) { events = append(events, ev) }))
	a := mustAdd(t, s, "a")
	b := mustAdd(t, s, "b")
	s.Start(a.ID)
	events = nil

	s.Start(b.ID)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (paused, started)", len(events))
	}
	if events[0].Kind != EventPaused || events[0].TaskID != a.ID {
		t.Errorf("events[0] = %s/%d, want paused/%d", events[0].Kind, events[0].TaskID, a.ID)
	}
	if events[1].Kind != EventStarted || events[1].TaskID != b.ID {
		t.Errorf("events[1] = %s/%d, want started/%d", events[1].Kind, events[1].TaskID, b.ID)
	}
	for _, ev := range events {
		if active, ok := ev.Snapshot.Active(); !ok || active.ID != b.ID {
			t.Errorf("%s snapshot shows intermediate state", ev.Kind)
		}
	}
}

func TestObserver_Reentrant(t *testing.T) {
	var s *Store
	var seen int
	s = newTestStore(t, WithObserver(func(ev Event) {
		seen++
		// Calling back into the store must not deadlock.
		_ = s.Snapshot()
		if ev.Kind == EventStarted {
			s.Pause(ev.TaskID)
		}
	}))
	a := mustAdd(t, s, "a")

	done := make(chan struct{})
	go func() {
		s.Start(a.ID)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer callback deadlocked")
	}

	if got, _ := s.Get(a.ID); got.Active {
		t.Error("observer's Pause was lost")
	}
	if seen < 3 {
		t.Errorf("observer saw %d events, want added, started and paused", seen)
	}
}

func TestConcurrentIntents(t *testing.T) {
	s := NewStore(WithTickInterval(time.Millisecond))
	defer s.Close()

	var ids []int64
	for i := 0; i < 5; i++ {
		task, err := s.Add("t", true)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := ids[(w+i)%len(ids)]
				switch i % 3 {
				case 0:
					s.Start(id)
				case 1:
					s.Pause(id)
				default:
					if n := activeCount(s); n > 1 {
						t.Errorf("observed %d active tasks", n)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()
}
