package dto

import (
	"time"

	"taskcore/internal/models/achievement"
	"taskcore/internal/models/reminder"
	"taskcore/internal/models/task"
	"taskcore/internal/models/template"
	"taskcore/internal/models/tombstone"
	"taskcore/internal/service"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority,omitempty"`
	DueTime         *time.Time `json:"due_time,omitempty"`
	EstimateMinutes *int       `json:"estimate_minutes,omitempty"`
}

// UpdateTaskRequest - частичный patch: nil-поле не трогает значение.
// Version обязательна - без неё версионная защита не работает.
type UpdateTaskRequest struct {
	Version         int        `json:"version"`
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	DueTime         *time.Time `json:"due_time,omitempty"`
	ClearDueTime    bool       `json:"clear_due_time,omitempty"`
	EstimateMinutes *int       `json:"estimate_minutes,omitempty"`
	AddFocusSeconds *int       `json:"add_focus_seconds,omitempty"`
	Archived        *bool      `json:"archived,omitempty"`
	Uncomplete      bool       `json:"uncomplete,omitempty"`
}

type CompleteTaskRequest struct {
	Version int    `json:"version"`
	Cause   string `json:"cause,omitempty"`
}

type TaskResponse struct {
	UUID            uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority"`
	DueTime         *time.Time `json:"due_time,omitempty"`
	EstimateMinutes *int       `json:"estimate_minutes,omitempty"`
	FocusSeconds    int        `json:"focus_seconds"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Archived        bool       `json:"archived"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty"`
	SubtaskCount    int        `json:"subtask_count"`
	SubtaskDone     int        `json:"subtask_done"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	IsOverdue       bool       `json:"is_overdue"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		UUID:            t.UUID,
		Title:           t.Title,
		Description:     t.Description,
		Priority:        string(t.Priority),
		DueTime:         t.DueTime,
		EstimateMinutes: t.EstimateMinutes,
		FocusSeconds:    t.FocusSeconds,
		Completed:       t.Completed,
		CompletedAt:     t.CompletedAt,
		Archived:        t.Archived,
		TemplateID:      t.TemplateID,
		SubtaskCount:    t.SubtaskCount,
		SubtaskDone:     t.SubtaskDone,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		IsOverdue:       !t.Completed && t.DueTime != nil && t.DueTime.Before(time.Now()),
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

// MutationResponse несёт и новое состояние, и побочные эффекты мутации,
// чтобы клиент мог показать тост об ачивке без второго запроса
type MutationResponse struct {
	Task         TaskResponse        `json:"task"`
	Unlocks      []achievement.Unlock `json:"unlocks,omitempty"`
	Streak       int                 `json:"streak,omitempty"`
	NextInstance *TaskResponse       `json:"next_instance,omitempty"`
}

func FromMutation(m *service.MutationResult) MutationResponse {
	resp := MutationResponse{
		Task:    FromTask(m.Task),
		Unlocks: m.Unlocks,
		Streak:  m.Streak,
	}
	if m.NextInstance != nil {
		next := FromTask(m.NextInstance)
		resp.NextInstance = &next
	}
	return resp
}

type DeleteTaskResponse struct {
	TombstoneID      uuid.UUID `json:"tombstone_id"`
	RecoverableUntil time.Time `json:"recoverable_until"`
}

func FromHandle(h *tombstone.Handle) DeleteTaskResponse {
	return DeleteTaskResponse{
		TombstoneID:      h.TombstoneID,
		RecoverableUntil: h.RecoverableUntil,
	}
}

type CreateSubtaskRequest struct {
	Title string `json:"title"`
}

type ToggleSubtaskRequest struct {
	Completed bool `json:"completed"`
}

type CreateTemplateRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Priority        string `json:"priority,omitempty"`
	EstimateMinutes *int   `json:"estimate_minutes,omitempty"`
	Rule            string `json:"rule"`
}

type UpdateTemplateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Rule        *string `json:"rule,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type TemplateResponse struct {
	UUID            uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority"`
	EstimateMinutes *int       `json:"estimate_minutes,omitempty"`
	Rule            string     `json:"rule"`
	Active          bool       `json:"active"`
	NextDue         *time.Time `json:"next_due,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

func FromTemplate(t *template.Template) TemplateResponse {
	return TemplateResponse{
		UUID:            t.UUID,
		Title:           t.Title,
		Description:     t.Description,
		Priority:        string(t.Priority),
		EstimateMinutes: t.EstimateMinutes,
		Rule:            t.Rule,
		Active:          t.Active,
		NextDue:         t.NextDue,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func FromTemplateList(templates []*template.Template) []TemplateResponse {
	result := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		result[i] = FromTemplate(t)
	}
	return result
}

type CreateReminderRequest struct {
	Kind          string     `json:"kind"`
	OffsetMinutes int        `json:"offset_minutes,omitempty"`
	At            *time.Time `json:"at,omitempty"`
}

type ReminderResponse struct {
	UUID          uuid.UUID  `json:"id"`
	TaskID        uuid.UUID  `json:"task_id"`
	Kind          string     `json:"kind"`
	OffsetMinutes int        `json:"offset_minutes"`
	At            *time.Time `json:"at,omitempty"`
	Fired         bool       `json:"fired"`
	FiredAt       *time.Time `json:"fired_at,omitempty"`
}

func FromReminder(r *reminder.Reminder) ReminderResponse {
	return ReminderResponse{
		UUID:          r.UUID,
		TaskID:        r.TaskID,
		Kind:          string(r.Kind),
		OffsetMinutes: r.OffsetMinutes,
		At:            r.At,
		Fired:         r.Fired,
		FiredAt:       r.FiredAt,
	}
}

func FromReminderList(reminders []*reminder.Reminder) []ReminderResponse {
	result := make([]ReminderResponse, len(reminders))
	for i, r := range reminders {
		result[i] = FromReminder(r)
	}
	return result
}

type AchievementStateResponse struct {
	Tier              string             `json:"tier"`
	LifetimeCompleted int                `json:"lifetime_completed"`
	CurrentStreak     int                `json:"current_streak"`
	LongestStreak     int                `json:"longest_streak"`
	FocusSessions     int                `json:"focus_sessions"`
	NotesConverted    int                `json:"notes_converted"`
	Unlocked          []string           `json:"unlocked"`
	Limits            achievement.Limits `json:"limits"`
}

func FromAchievementState(s *achievement.State, limits achievement.Limits) AchievementStateResponse {
	unlocked := s.Unlocked
	if unlocked == nil {
		unlocked = []string{}
	}
	return AchievementStateResponse{
		Tier:              string(s.Tier),
		LifetimeCompleted: s.LifetimeCompleted,
		CurrentStreak:     s.CurrentStreak,
		LongestStreak:     s.LongestStreak,
		FocusSessions:     s.FocusSessions,
		NotesConverted:    s.NotesConverted,
		Unlocked:          unlocked,
		Limits:            limits,
	}
}
