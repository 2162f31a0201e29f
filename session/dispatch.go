package session

import (
	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/logging"
	"github.com/vinayprograms/samaya/timer"
)

// Intent names a user action.
type Intent string

const (
	IntentAdd     Intent = "add"
	IntentStart   Intent = "start"
	IntentPause   Intent = "pause"
	IntentReset   Intent = "reset"
	IntentDelete  Intent = "delete"
	IntentFocus   Intent = "focus"
	IntentUnfocus Intent = "unfocus"
)

// Command is one intent from the presentation layer.
type Command struct {
	Intent    Intent `json:"intent"`
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// Result is the outcome of a dispatched command.
//
// When Needs is set nothing changed; re-dispatch the same command with
// Confirmed=true to commit, or drop it to abort.
type Result struct {
	Needs        timer.Requirement `json:"needs,omitempty"`
	ConflictID   int64             `json:"conflictId,omitempty"`
	ConflictName string            `json:"conflictName,omitempty"`
	Task         timer.Task        `json:"task"`
	Snapshot     timer.Snapshot    `json:"snapshot"`
}

// NeedsConfirmation reports whether the command was held back.
func (r Result) NeedsConfirmation() bool {
	return r.Needs != timer.RequireNothing
}

type handler func(s *Session, cmd Command) (Result, error)

var handlers = map[Intent]handler{
	IntentAdd:     handleAdd,
	IntentStart:   handleStart,
	IntentPause:   handleSimple((*timer.Store).Pause),
	IntentReset:   handleSimple((*timer.Store).Reset),
	IntentDelete:  handleSimple((*timer.Store).Delete),
	IntentFocus:   handleSimple((*timer.Store).EnterFocus),
	IntentUnfocus: handleUnfocus,
}

// Dispatch runs cmd against the store.
func (s *Session) Dispatch(cmd Command) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	h, ok := handlers[cmd.Intent]
	if !ok {
		return Result{}, errors.InvalidInput("unknown intent",
			errors.WithMetadata("intent", string(cmd.Intent)))
	}

	res, err := h(s, cmd)
	if err != nil {
		s.logger.Debug("intent_rejected", logging.Fields{
			"intent": string(cmd.Intent),
			"id":     cmd.ID,
			"code":   string(errors.Code(err)),
		})
		return Result{}, err
	}
	res.Snapshot = s.store.Snapshot()
	if res.Task.ID == 0 && cmd.ID != 0 {
		res.Task, _ = res.Snapshot.Find(cmd.ID)
	}
	return res, nil
}

func (s *Session) ready() error {
	if s.isClosed() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}
	return nil
}

func needs(p timer.Proposal) Result {
	return Result{
		Needs:        p.Requirement,
		ConflictID:   p.ConflictID,
		ConflictName: p.ConflictName,
	}
}

func handleAdd(s *Session, cmd Command) (Result, error) {
	if !cmd.Confirmed {
		p, err := s.store.ProposeAdd(cmd.Name)
		if err != nil {
			return Result{}, err
		}
		if p.NeedsConfirmation() {
			return needs(p), nil
		}
	}
	t, err := s.store.Add(cmd.Name, cmd.Confirmed)
	if err != nil {
		return Result{}, err
	}
	return Result{Task: t}, nil
}

func handleStart(s *Session, cmd Command) (Result, error) {
	if !cmd.Confirmed {
		p, err := s.store.ProposeStart(cmd.ID)
		if err != nil {
			return Result{}, err
		}
		if p.NeedsConfirmation() {
			return needs(p), nil
		}
	}
	return Result{}, s.store.Start(cmd.ID)
}

func handleSimple(op func(*timer.Store, int64) error) handler {
	return func(s *Session, cmd Command) (Result, error) {
		return Result{}, op(s.store, cmd.ID)
	}
}

func handleUnfocus(s *Session, _ Command) (Result, error) {
	s.store.ExitFocus()
	return Result{}, nil
}

// AddTask dispatches an add intent.
func (s *Session) AddTask(name string, confirmed bool) (Result, error) {
	return s.Dispatch(Command{Intent: IntentAdd, Name: name, Confirmed: confirmed})
}

// StartTask dispatches a start intent.
func (s *Session) StartTask(id int64, confirmed bool) (Result, error) {
	return s.Dispatch(Command{Intent: IntentStart, ID: id, Confirmed: confirmed})
}

// PauseTask stops the task if it is active.
func (s *Session) PauseTask(id int64) error {
	_, err := s.Dispatch(Command{Intent: IntentPause, ID: id})
	return err
}

// ResetTask zeroes the task's elapsed time.
func (s *Session) ResetTask(id int64) error {
	_, err := s.Dispatch(Command{Intent: IntentReset, ID: id})
	return err
}

// DeleteTask removes the task, leaving focus mode if it was the focused one.
func (s *Session) DeleteTask(id int64) error {
	_, err := s.Dispatch(Command{Intent: IntentDelete, ID: id})
	return err
}

// EnterFocus narrows the view to one task.
func (s *Session) EnterFocus(id int64) error {
	_, err := s.Dispatch(Command{Intent: IntentFocus, ID: id})
	return err
}

// ExitFocus returns to the full task list.
func (s *Session) ExitFocus() error {
	_, err := s.Dispatch(Command{Intent: IntentUnfocus})
	return err
}
