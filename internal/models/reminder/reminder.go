package reminder

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const KindRelative Kind = "relative"
const KindAbsolute Kind = "absolute"

// Reminder живёт по машине состояний Pending -> Fired, Fired - терминальное
// состояние и назад не сбрасывается
type Reminder struct {
	UUID          uuid.UUID  `json:"uuid" db:"uuid"`
	TaskID        uuid.UUID  `json:"task_id" db:"task_id"`
	OwnerID       uuid.UUID  `json:"owner_id" db:"owner_id"`
	Kind          Kind       `json:"kind" db:"kind"`
	OffsetMinutes int        `json:"offset_minutes" db:"offset_minutes"`
	At            *time.Time `json:"at,omitempty" db:"at"`
	Fired         bool       `json:"fired" db:"fired"`
	FiredAt       *time.Time `json:"fired_at,omitempty" db:"fired_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// TriggerTime вычисляет момент срабатывания. Для relative без дедлайна
// задачи возвращает nil - такое напоминание никогда не срабатывает.
func (r *Reminder) TriggerTime(taskDue *time.Time) *time.Time {
	switch r.Kind {
	case KindAbsolute:
		return r.At
	case KindRelative:
		if taskDue == nil {
			return nil
		}
		t := taskDue.Add(time.Duration(r.OffsetMinutes) * time.Minute)
		return &t
	}
	return nil
}

func ValidKind(k Kind) bool {
	return k == KindRelative || k == KindAbsolute
}
