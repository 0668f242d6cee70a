package entity

import "time"

// EventKind identifies what a task event carries.
type EventKind string

const (
	EventSnapshot  EventKind = "snapshot"
	EventStatus    EventKind = "status"
	EventNotes     EventKind = "notes"
	EventFindings  EventKind = "findings"
	EventEvidence  EventKind = "evidence"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// TaskEvent is one entry in a task's ordered progress stream. Seq is
// assigned at commit time and is strictly increasing per task.
type TaskEvent struct {
	TaskID   string     `json:"task_id"`
	Seq      int        `json:"seq"`
	Kind     EventKind  `json:"kind"`
	Status   TaskStatus `json:"status,omitempty"`
	Notes    []string   `json:"notes,omitempty"`
	Findings []Finding  `json:"findings,omitempty"`
	Evidence []Evidence `json:"evidence,omitempty"`
	Error    *TaskError `json:"error,omitempty"`
	Snapshot *Task      `json:"snapshot,omitempty"`
	At       time.Time  `json:"at"`
}

// Terminal reports whether the event closes the stream.
func (e TaskEvent) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}
