package task

import (
	"time"

	"github.com/google/uuid"
)

type Priority string
type Cause string

const PriorityLow Priority = "low"
const PriorityMedium Priority = "medium"
const PriorityHigh Priority = "high"

// причина выставления флага completed
const CauseManual Cause = "manual"
const CauseAuto Cause = "auto"
const CauseForce Cause = "force"

// MaxSubtasks - жёсткий лимит подзадач на одну задачу
const MaxSubtasks = 10

type Task struct {
	UUID            uuid.UUID  `json:"uuid" db:"uuid"`
	OwnerID         uuid.UUID  `json:"owner_id" db:"owner_id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Priority        Priority   `json:"priority" db:"priority"`
	DueTime         *time.Time `json:"due_time,omitempty" db:"due_time"`
	EstimateMinutes *int       `json:"estimate_minutes,omitempty" db:"estimate_minutes"`
	FocusSeconds    int        `json:"focus_seconds" db:"focus_seconds"`
	Completed       bool       `json:"completed" db:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy     Cause      `json:"completed_by,omitempty" db:"completed_by"`
	Hidden          bool       `json:"hidden" db:"hidden"`
	Archived        bool       `json:"archived" db:"archived"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty" db:"template_id"`
	SubtaskCount    int        `json:"subtask_count" db:"subtask_count"`
	SubtaskDone     int        `json:"subtask_done" db:"subtask_done"`
	Version         int        `json:"version" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

type Subtask struct {
	UUID        uuid.UUID  `json:"uuid" db:"uuid"`
	TaskID      uuid.UUID  `json:"task_id" db:"task_id"`
	Title       string     `json:"title" db:"title"`
	Completed   bool       `json:"completed" db:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	OrderIndex  int        `json:"order_index" db:"order_index"`
}

func ValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func ValidCause(c Cause) bool {
	return c == CauseManual || c == CauseAuto || c == CauseForce
}

// Clone возвращает независимую копию задачи (снимок для tombstone и in-memory хранилища)
func (t *Task) Clone() *Task {
	cp := *t
	if t.DueTime != nil {
		d := *t.DueTime
		cp.DueTime = &d
	}
	if t.EstimateMinutes != nil {
		e := *t.EstimateMinutes
		cp.EstimateMinutes = &e
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		cp.CompletedAt = &c
	}
	if t.TemplateID != nil {
		id := *t.TemplateID
		cp.TemplateID = &id
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		cp.UpdatedAt = &u
	}
	return &cp
}
