package template

import (
	"time"

	"taskcore/internal/models/task"

	"github.com/google/uuid"
)

// Template - шаблон регулярной задачи. Rule хранится строкой RRULE (RFC 5545),
// валидация происходит при создании/редактировании, генерация видит только
// уже проверенные правила.
type Template struct {
	UUID            uuid.UUID     `json:"uuid" db:"uuid"`
	OwnerID         uuid.UUID     `json:"owner_id" db:"owner_id"`
	Title           string        `json:"title" db:"title"`
	Description     string        `json:"description" db:"description"`
	Priority        task.Priority `json:"priority" db:"priority"`
	EstimateMinutes *int          `json:"estimate_minutes,omitempty" db:"estimate_minutes"`
	Rule            string        `json:"rule" db:"rule"`
	Active          bool          `json:"active" db:"active"`
	NextDue         *time.Time    `json:"next_due,omitempty" db:"next_due"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}
