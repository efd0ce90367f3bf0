package task

import "time"

// TaskOption - функция частичного обновления; набор опций = patch,
// который сервис применяет к прочитанной задаче перед записью
type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(t *Task) {
		t.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(t *Task) {
		t.Description = description
	}
}

func WithPriority(priority Priority) TaskOption {
	if !ValidPriority(priority) {
		return nil
	}
	return func(t *Task) {
		t.Priority = priority
	}
}

func WithDueTime(dueTime *time.Time) TaskOption {
	return func(t *Task) {
		t.DueTime = dueTime
	}
}

func WithEstimateMinutes(minutes int) TaskOption {
	if minutes <= 0 {
		return nil
	}
	return func(t *Task) {
		t.EstimateMinutes = &minutes
	}
}

func WithAddedFocusSeconds(seconds int) TaskOption {
	if seconds <= 0 {
		return nil
	}
	return func(t *Task) {
		t.FocusSeconds += seconds
	}
}

func WithArchived(archived bool) TaskOption {
	return func(t *Task) {
		t.Archived = archived
	}
}

func WithHidden(hidden bool) TaskOption {
	return func(t *Task) {
		t.Hidden = hidden
	}
}

func WithCompleted(at time.Time, cause Cause) TaskOption {
	return func(t *Task) {
		t.Completed = true
		t.CompletedAt = &at
		t.CompletedBy = cause
	}
}

func WithUncompleted() TaskOption {
	return func(t *Task) {
		t.Completed = false
		t.CompletedAt = nil
		t.CompletedBy = ""
	}
}
