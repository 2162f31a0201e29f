package reconcile

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/timer"
)

// Report counts what decoding kept and dropped.
type Report struct {
	Records    int `json:"records"`
	Kept       int `json:"kept"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Overflow   int `json:"overflow"`
}

// Dropped returns the number of records discarded.
func (r Report) Dropped() int {
	return r.Invalid + r.Duplicates + r.Overflow
}

// DecodeTasks strictly decodes the persisted tasks blob.
//
// An empty blob is an empty collection. A blob that is not a JSON array is
// corrupt. Elements with any ill-typed field are dropped whole, as are
// elements repeating an earlier id. At most timer.MaxTasks are kept.
// Kept records are sanitized.
func DecodeTasks(blob []byte) ([]timer.Task, Report, error) {
	var rep Report
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, rep, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(blob, &elems); err != nil || elems == nil {
		if err == nil {
			return nil, rep, errors.Corrupt("tasks is not an array")
		}
		return nil, rep, errors.WrapWithCode(err, errors.ErrCodeCorruption, "decode tasks")
	}

	rep.Records = len(elems)
	seen := make(map[int64]bool, len(elems))
	tasks := make([]timer.Task, 0, len(elems))

	for _, raw := range elems {
		t, ok := decodeRecord(raw)
		switch {
		case !ok:
			rep.Invalid++
		case seen[t.ID]:
			rep.Duplicates++
		case len(tasks) >= timer.MaxTasks:
			rep.Overflow++
		default:
			seen[t.ID] = true
			tasks = append(tasks, Sanitize(t))
		}
	}
	rep.Kept = len(tasks)
	return tasks, rep, nil
}

// decodeRecord accepts an element only if every field is well-typed.
func decodeRecord(raw json.RawMessage) (timer.Task, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return timer.Task{}, false
	}

	id, ok := integral(fields["id"])
	if !ok || id <= 0 {
		return timer.Task{}, false
	}

	var name string
	if !isString(fields["name"]) || json.Unmarshal(fields["name"], &name) != nil {
		return timer.Task{}, false
	}
	if strings.TrimSpace(name) == "" {
		return timer.Task{}, false
	}

	elapsed, ok := integral(fields["time"])
	if !ok {
		return timer.Task{}, false
	}

	var running bool
	if !isBool(fields["isRunning"]) || json.Unmarshal(fields["isRunning"], &running) != nil {
		return timer.Task{}, false
	}

	var createdRaw string
	if !isString(fields["createdAt"]) || json.Unmarshal(fields["createdAt"], &createdRaw) != nil {
		return timer.Task{}, false
	}
	created, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return timer.Task{}, false
	}

	return timer.Task{
		ID:        id,
		Name:      name,
		Elapsed:   elapsed,
		Active:    running,
		CreatedAt: timer.CreationTime(created),
	}, true
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func isBool(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "true" || s == "false"
}

// integral parses a JSON number with no fractional part, such as 42, 42.0
// or 4.2e1. Strings, booleans and null are rejected.
func integral(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	s := string(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// Out-of-range values saturate so Sanitize can clamp them.
	switch {
	case f >= 0x1p63:
		return math.MaxInt64, true
	case f <= -0x1p63:
		return math.MinInt64, true
	}
	return int64(f), true
}

// Sanitize clamps elapsed time to [0, timer.MaxElapsed] and trims and
// truncates the name to timer.MaxNameLength characters.
func Sanitize(t timer.Task) timer.Task {
	t.Elapsed = timer.ClampElapsed(t.Elapsed)
	t.Name = timer.TruncateName(t.Name)
	return t
}
