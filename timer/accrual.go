package timer

import (
	"time"

	"github.com/vinayprograms/samaya/logging"
)

// accrual is the handle of one background ticking goroutine.
type accrual struct {
	id   int64
	stop chan struct{}
}

// startAccrualLocked installs a fresh accrual for id, cancelling any stale one.
func (s *Store) startAccrualLocked(id int64) {
	s.stopAccrualLocked(id)
	if s.closed {
		return
	}
	a := &accrual{id: id, stop: make(chan struct{})}
	s.accruals[id] = a
	go s.runAccrual(a, s.tickInterval)
}

// stopAccrualLocked signals the accrual for id to exit without waiting for
// it; the goroutine may be blocked on s.mu.
func (s *Store) stopAccrualLocked(id int64) {
	if a, ok := s.accruals[id]; ok {
		close(a.stop)
		delete(s.accruals, id)
	}
}

func (s *Store) stopAllAccrualsLocked() {
	for id := range s.accruals {
		s.stopAccrualLocked(id)
	}
}

func (s *Store) runAccrual(a *accrual, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			s.tick(a)
		}
	}
}

// tick accrues for a only while a is still the installed handle, so a tick
// racing a pause or restart is dropped.
func (s *Store) tick(a *accrual) {
	s.mu.Lock()
	if s.accruals[a.id] != a {
		s.mu.Unlock()
		return
	}
	s.accrueLocked(a.id)
	s.unlockAndDispatch()
}

// AccrueOneSecond adds one second to id if it is active. On reaching
// MaxElapsed the task is paused and EventLimitReached is raised.
func (s *Store) AccrueOneSecond(id int64) {
	s.mu.Lock()
	s.accrueLocked(id)
	s.unlockAndDispatch()
}

func (s *Store) accrueLocked(id int64) {
	i := s.indexLocked(id)
	if i < 0 || !s.tasks[i].Active {
		return
	}
	t := &s.tasks[i]
	t.Elapsed = ClampElapsed(t.Elapsed + 1)
	if t.Elapsed < MaxElapsed {
		s.emitLocked(EventTick, id)
		return
	}

	t.Active = false
	s.stopAccrualLocked(id)
	s.logger.Warn("limit_reached", logging.Fields{"task": id})
	s.emitLocked(EventLimitReached, id)
}
