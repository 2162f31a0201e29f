package persist

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/vinayprograms/samaya/timer"
)

// Storage keys.
const (
	KeyTasks         = "tasks"
	KeyLastUpdate    = "last-update"
	KeyFocusMode     = "focus-mode"
	KeyFocusedTaskID = "focused-task-id"
)

// Keys lists every key Save writes, in write order.
var Keys = []string{KeyTasks, KeyLastUpdate, KeyFocusMode, KeyFocusedTaskID}

// TimeLayout is the createdAt layout: ISO-8601 with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is the persisted form of a task.
type Record struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Time      int64  `json:"time"`
	IsRunning bool   `json:"isRunning"`
	CreatedAt string `json:"createdAt"`
}

// RecordFromTask converts a task to its persisted form.
func RecordFromTask(t timer.Task) Record {
	return Record{
		ID:        t.ID,
		Name:      t.Name,
		Time:      t.Elapsed,
		IsRunning: t.Active,
		CreatedAt: t.CreatedAt.UTC().Format(TimeLayout),
	}
}

// EncodeTasks renders tasks as the value of KeyTasks.
func EncodeTasks(tasks []timer.Task) ([]byte, error) {
	records := make([]Record, len(tasks))
	for i, t := range tasks {
		records[i] = RecordFromTask(t)
	}
	return json.Marshal(records)
}

// EncodeMillis renders t as decimal unix milliseconds.
func EncodeMillis(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}

// DecodeMillis parses decimal unix milliseconds. ok is false for anything
// that is not a positive integer.
func DecodeMillis(b []byte) (t time.Time, ok bool) {
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// EncodeFocus renders the two focus keys.
func EncodeFocus(f timer.Focus) (mode, id []byte) {
	if !f.Enabled {
		return []byte("false"), []byte{}
	}
	return []byte("true"), []byte(strconv.FormatInt(f.TaskID, 10))
}

// DecodeFocus parses the two focus keys. Anything unexpected means focus off.
func DecodeFocus(mode, id []byte) timer.Focus {
	if string(mode) != "true" {
		return timer.Focus{}
	}
	taskID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || taskID <= 0 {
		return timer.Focus{}
	}
	return timer.Focus{Enabled: true, TaskID: taskID}
}
