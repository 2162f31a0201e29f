package reconcile

import (
	"time"

	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/logging"
	"github.com/vinayprograms/samaya/persist"
	"github.com/vinayprograms/samaya/timer"
)

// Engine loads persisted state into a store.
type Engine struct {
	gateway *persist.Gateway
	store   *timer.Store
	clock   func() time.Time
	maxAway time.Duration
	logger  *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used as "now".
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithMaxAway sets the away-duration cap.
func WithMaxAway(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxAway = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine restoring into store.
func NewEngine(gateway *persist.Gateway, store *timer.Store, opts ...Option) *Engine {
	e := &Engine{
		gateway: gateway,
		store:   store,
		clock:   time.Now,
		maxAway: DefaultMaxAway,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("reconcile")
	return e
}

// Load reads persisted state, reconciles it and restores it into the store,
// restarting accrual for the active task.
//
// A corrupt tasks blob is logged and treated as an empty collection. Store
// read failures are returned and leave the store untouched.
func (e *Engine) Load() (Result, error) {
	st, err := e.gateway.Load()
	if err != nil {
		return Result{}, err
	}

	tasks, rep, err := DecodeTasks(st.TasksBlob)
	if err != nil {
		if !errors.IsCorrupt(err) {
			return Result{}, err
		}
		e.logger.Error("corrupt_state_reset", logging.Fields{
			"error": err.Error(),
			"bytes": len(st.TasksBlob),
		})
		tasks = nil
	}
	if rep.Dropped() > 0 {
		e.logger.Warn("records_dropped", logging.Fields{
			"invalid":    rep.Invalid,
			"duplicates": rep.Duplicates,
			"overflow":   rep.Overflow,
		})
	}

	res := Reconcile(tasks, st.LastUpdate, e.clock(), e.maxAway)
	res.Report = rep
	if len(res.Deactivated) > 0 {
		e.logger.Repaired(res.ActiveID, res.Deactivated)
	}

	e.store.Restore(res.Tasks, st.Focus)
	e.logger.Reconciled(len(res.Tasks), rep.Dropped(), res.Credited, res.ActiveID)
	return res, nil
}
