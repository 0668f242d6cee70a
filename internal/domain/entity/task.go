package entity

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a research task.
//
// Lifecycle: queued -> running -> writing -> validating -> completed,
// with failed_retriable / failed_final reachable from any non-terminal
// state. failed_retriable may re-enter the graph at the stage that failed;
// completed and failed_final are terminal.
type TaskStatus string

const (
	StatusQueued          TaskStatus = "queued"
	StatusRunning         TaskStatus = "running"
	StatusWriting         TaskStatus = "writing"
	StatusValidating      TaskStatus = "validating"
	StatusCompleted       TaskStatus = "completed"
	StatusFailedRetriable TaskStatus = "failed_retriable"
	StatusFailedFinal     TaskStatus = "failed_final"
)

var allowedTransitions = map[TaskStatus][]TaskStatus{
	StatusQueued:          {StatusRunning, StatusFailedRetriable, StatusFailedFinal},
	StatusRunning:         {StatusWriting, StatusFailedRetriable, StatusFailedFinal},
	StatusWriting:         {StatusValidating, StatusFailedRetriable, StatusFailedFinal},
	StatusValidating:      {StatusCompleted, StatusFailedRetriable, StatusFailedFinal},
	StatusFailedRetriable: {StatusRunning, StatusWriting, StatusValidating, StatusFailedFinal},
	StatusCompleted:       {},
	StatusFailedFinal:     {},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailedFinal
}

// TaskError records why a task failed.
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RouterDecision is the intent-routing stage output.
type RouterDecision struct {
	Purpose            Purpose `json:"purpose"`
	Depth              Depth   `json:"depth"`
	Profile            string  `json:"profile,omitempty"`
	NeedsClarification bool    `json:"needs_clarification"`
	NeedDeepResearch   bool    `json:"need_deep_research"`
}

// Clarification is the clarifier stage output.
type Clarification struct {
	RefinedQuery string   `json:"refined_query"`
	Questions    []string `json:"questions,omitempty"`
}

// ResearchResult is the output of one research pass.
type ResearchResult struct {
	PassIndex     int        `json:"pass_index"`
	Profile       string     `json:"profile,omitempty"`
	Model         string     `json:"model,omitempty"`
	SearchQueries []string   `json:"search_queries,omitempty"`
	Findings      []Finding  `json:"findings,omitempty"`
	Evidence      []Evidence `json:"evidence,omitempty"`
	Notes         []string   `json:"notes,omitempty"`
	Confidence    string     `json:"confidence,omitempty"`
	FromCache     bool       `json:"from_cache,omitempty"`
}

// Task is the persisted unit of work for an async research run. Stage
// payloads are written once per pipeline run; Notes, Findings and Evidence
// accumulate as the background operation reports progress.
type Task struct {
	ID       string           `json:"task_id"`
	Query    string           `json:"query"`
	Controls ResearchControls `json:"controls"`

	Status TaskStatus `json:"status"`

	Router        *RouterDecision  `json:"router,omitempty"`
	Clarification *Clarification   `json:"clarification,omitempty"`
	Research      []ResearchResult `json:"research,omitempty"`
	Draft         *Draft           `json:"draft,omitempty"`
	Quality       *QualityReport   `json:"quality,omitempty"`
	Report        *Report          `json:"report,omitempty"`

	Notes    []string   `json:"notes,omitempty"`
	Findings []Finding  `json:"findings,omitempty"`
	Evidence []Evidence `json:"evidence,omitempty"`

	Error *TaskError `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask creates a queued task for a normalized request.
func NewTask(req ResearchRequest) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		Query:     req.Query,
		Controls:  req.Controls,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the task reached a terminal status.
func (t *Task) Terminal() bool {
	return t.Status.Terminal()
}

// CompletedPasses returns how many research passes have committed results.
// Used on crash recovery to skip passes that already ran.
func (t *Task) CompletedPasses() int {
	return len(t.Research)
}

// MergeNotes unions new note fragments into the task's note set, preserving
// first-seen order. Returns the number of notes actually added, so polling
// an unchanged operation twice is a no-op.
func (t *Task) MergeNotes(notes []string) int {
	seen := make(map[string]bool, len(t.Notes))
	for _, n := range t.Notes {
		seen[n] = true
	}

	added := 0
	for _, n := range notes {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		t.Notes = append(t.Notes, n)
		added++
	}
	return added
}

// AppendResearch records one finished research pass and folds its findings,
// evidence and notes into the accumulating task-level sets.
func (t *Task) AppendResearch(result ResearchResult) {
	t.Research = append(t.Research, result)
	t.Findings = append(t.Findings, result.Findings...)
	t.Evidence = append(t.Evidence, result.Evidence...)
	t.MergeNotes(result.Notes)
}

// Clone returns a deep copy safe to hand to readers while the executor keeps
// mutating the original.
func (t *Task) Clone() *Task {
	clone := *t

	clone.Notes = append([]string(nil), t.Notes...)
	clone.Findings = append([]Finding(nil), t.Findings...)
	clone.Evidence = append([]Evidence(nil), t.Evidence...)
	clone.Research = append([]ResearchResult(nil), t.Research...)

	if t.Router != nil {
		r := *t.Router
		clone.Router = &r
	}
	if t.Clarification != nil {
		c := *t.Clarification
		clone.Clarification = &c
	}
	if t.Draft != nil {
		d := *t.Draft
		clone.Draft = &d
	}
	if t.Quality != nil {
		q := *t.Quality
		clone.Quality = &q
	}
	if t.Report != nil {
		rep := *t.Report
		clone.Report = &rep
	}
	if t.Error != nil {
		e := *t.Error
		clone.Error = &e
	}
	return &clone
}
