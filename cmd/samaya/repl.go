package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/session"
	"github.com/vinayprograms/samaya/timer"
)

const helpText = `Commands:
  add <name>       create a task
  start <n|id>     start timing a task (pauses the running one)
  pause <n|id>     pause a task
  reset <n|id>     pause and zero a task
  delete <n|id>    remove a task
  focus <n|id>     show only this task
  unfocus          show all tasks
  list             show tasks
  save             save now
  help             show this text
  quit             save and exit

<n> is the row number shown by list.`

// sessionAPI is the part of *session.Session the prompt drives.
type sessionAPI interface {
	Dispatch(cmd session.Command) (session.Result, error)
	Snapshot() timer.Snapshot
	Done() <-chan struct{}
}

type repl struct {
	s     sessionAPI
	lines <-chan string
	out   io.Writer
	save  func() error
}

func newREPL(s sessionAPI, save func() error, lines <-chan string, out io.Writer) *repl {
	return &repl{s: s, save: save, lines: lines, out: out}
}

// next returns the next input line, or false on EOF or shutdown.
func (r *repl) next(prompt string) (string, bool) {
	fmt.Fprint(r.out, prompt)
	select {
	case <-r.s.Done():
		fmt.Fprintln(r.out)
		return "", false
	case line, ok := <-r.lines:
		return strings.TrimSpace(line), ok
	}
}

func (r *repl) confirm(question string) bool {
	answer, ok := r.next(question + " [y/N] ")
	if !ok {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func (r *repl) loop() {
	r.list()
	for {
		line, ok := r.next("> ")
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		if !r.exec(line) {
			return
		}
	}
}

// exec runs one command line. It returns false to quit.
func (r *repl) exec(line string) bool {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
	case "list", "ls":
		r.list()
	case "save":
		if err := r.save(); err != nil {
			r.fail(err)
		} else {
			fmt.Fprintln(r.out, "Saved.")
		}
	case "add":
		r.dispatch(session.Command{Intent: session.IntentAdd, Name: arg})
	case "unfocus":
		r.dispatch(session.Command{Intent: session.IntentUnfocus})
	case "start", "pause", "reset", "delete", "focus":
		id, err := r.resolve(arg)
		if err != nil {
			r.fail(err)
			return true
		}
		r.dispatch(session.Command{Intent: session.Intent(strings.ToLower(verb)), ID: id})
	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type help.\n", verb)
	}
	return true
}

// resolve accepts a row number from list or a task id.
func (r *repl) resolve(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.InvalidInput("expected a row number or task id")
	}
	tasks := r.s.Snapshot().Tasks
	if n <= int64(len(tasks)) {
		return tasks[n-1].ID, nil
	}
	return n, nil
}

// dispatch runs cmd, asking for confirmation when the core needs it.
func (r *repl) dispatch(cmd session.Command) {
	res, err := r.s.Dispatch(cmd)
	if err != nil {
		r.fail(err)
		return
	}
	if res.NeedsConfirmation() {
		if !r.confirm(question(res)) {
			fmt.Fprintln(r.out, "Cancelled.")
			return
		}
		cmd.Confirmed = true
		if res, err = r.s.Dispatch(cmd); err != nil {
			r.fail(err)
			return
		}
	}
	r.render(res.Snapshot)
}

func question(res session.Result) string {
	switch res.Needs {
	case timer.RequireDuplicateConfirmation:
		return fmt.Sprintf("A task named %q already exists. Add another?", res.ConflictName)
	case timer.RequirePauseConfirmation:
		return fmt.Sprintf("%q is running. Pause it and switch?", res.ConflictName)
	default:
		return "Continue?"
	}
}

func (r *repl) list() {
	r.render(r.s.Snapshot())
}

func (r *repl) render(snap timer.Snapshot) {
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(r.out, "No tasks. Try: add <name>")
		return
	}
	for i, t := range snap.Tasks {
		if snap.Focus.Enabled && t.ID != snap.Focus.TaskID {
			continue
		}
		mark := " "
		if t.Active {
			mark = "*"
		}
		fmt.Fprintf(r.out, "%3d %s %-50s %s\n", i+1, mark, t.Name, clock(t.Elapsed))
	}
	if snap.Focus.Enabled {
		fmt.Fprintln(r.out, "(focus mode; unfocus to show all)")
		return
	}
	fmt.Fprintf(r.out, "%d tasks, %d running, total %s\n",
		snap.Stats.Total, snap.Stats.Active, clock(snap.Stats.TotalElapsed))
}

func (r *repl) fail(err error) {
	fmt.Fprintf(r.out, "error: %s\n", describe(err))
}

// describe prefers the short message of user-visible errors.
func describe(err error) string {
	if e := errors.As(err); e != nil && e.Message() != "" {
		return e.Message()
	}
	return err.Error()
}

// clock formats seconds as H:MM:SS.
func clock(seconds int64) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
