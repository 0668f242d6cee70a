package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// TaskModel is the tasks table row. Structured stage payloads are stored as
// JSON columns; status and the error fields stay relational so recovery and
// listing can filter without decoding payloads.
type TaskModel struct {
	ID     string `gorm:"primaryKey;column:task_id"`
	Status string `gorm:"index;not null"`
	Query  string `gorm:"not null"`

	Controls      []byte `gorm:"type:json"`
	Router        []byte `gorm:"type:json"`
	Clarification []byte `gorm:"type:json"`
	Research      []byte `gorm:"type:json"`
	Draft         []byte `gorm:"type:json"`
	Quality       []byte `gorm:"type:json"`
	Report        []byte `gorm:"type:json"`
	Notes         []byte `gorm:"type:json"`
	Findings      []byte `gorm:"type:json"`
	Evidence      []byte `gorm:"type:json"`

	ErrorKind    string
	ErrorMessage string

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (TaskModel) TableName() string {
	return "tasks"
}

// FromEntity serializes a task entity into its row form.
func FromEntity(task *entity.Task) (*TaskModel, error) {
	m := &TaskModel{
		ID:        task.ID,
		Status:    string(task.Status),
		Query:     task.Query,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}

	if task.Error != nil {
		m.ErrorKind = task.Error.Kind
		m.ErrorMessage = task.Error.Message
	}

	var err error
	if m.Controls, err = marshalField("controls", task.Controls); err != nil {
		return nil, err
	}
	if m.Router, err = marshalOptional("router", task.Router); err != nil {
		return nil, err
	}
	if m.Clarification, err = marshalOptional("clarification", task.Clarification); err != nil {
		return nil, err
	}
	if m.Research, err = marshalSlice("research", len(task.Research), task.Research); err != nil {
		return nil, err
	}
	if m.Draft, err = marshalOptional("draft", task.Draft); err != nil {
		return nil, err
	}
	if m.Quality, err = marshalOptional("quality", task.Quality); err != nil {
		return nil, err
	}
	if m.Report, err = marshalOptional("report", task.Report); err != nil {
		return nil, err
	}
	if m.Notes, err = marshalSlice("notes", len(task.Notes), task.Notes); err != nil {
		return nil, err
	}
	if m.Findings, err = marshalSlice("findings", len(task.Findings), task.Findings); err != nil {
		return nil, err
	}
	if m.Evidence, err = marshalSlice("evidence", len(task.Evidence), task.Evidence); err != nil {
		return nil, err
	}

	return m, nil
}

// ToEntity deserializes a row back into the task entity.
func (m *TaskModel) ToEntity() (*entity.Task, error) {
	task := &entity.Task{
		ID:        m.ID,
		Status:    entity.TaskStatus(m.Status),
		Query:     m.Query,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if m.ErrorKind != "" || m.ErrorMessage != "" {
		task.Error = &entity.TaskError{Kind: m.ErrorKind, Message: m.ErrorMessage}
	}

	if err := unmarshalField("controls", m.Controls, &task.Controls); err != nil {
		return nil, err
	}
	if err := unmarshalOptional("router", m.Router, &task.Router); err != nil {
		return nil, err
	}
	if err := unmarshalOptional("clarification", m.Clarification, &task.Clarification); err != nil {
		return nil, err
	}
	if err := unmarshalField("research", m.Research, &task.Research); err != nil {
		return nil, err
	}
	if err := unmarshalOptional("draft", m.Draft, &task.Draft); err != nil {
		return nil, err
	}
	if err := unmarshalOptional("quality", m.Quality, &task.Quality); err != nil {
		return nil, err
	}
	if err := unmarshalOptional("report", m.Report, &task.Report); err != nil {
		return nil, err
	}
	if err := unmarshalField("notes", m.Notes, &task.Notes); err != nil {
		return nil, err
	}
	if err := unmarshalField("findings", m.Findings, &task.Findings); err != nil {
		return nil, err
	}
	if err := unmarshalField("evidence", m.Evidence, &task.Evidence); err != nil {
		return nil, err
	}

	return task, nil
}

func marshalField(name string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return data, nil
}

func marshalOptional[T any](name string, v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return marshalField(name, v)
}

func marshalSlice[T any](name string, length int, v []T) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	return marshalField(name, v)
}

func unmarshalField(name string, data []byte, out interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

func unmarshalOptional[T any](name string, data []byte, out **T) error {
	if len(data) == 0 {
		return nil
	}
	value := new(T)
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	*out = value
	return nil
}
