package tombstone

import (
	"time"

	"taskcore/internal/models/task"

	"github.com/google/uuid"
)

// RecoveryWindow - окно восстановления мягко удалённой задачи
const RecoveryWindow = 30 * 24 * time.Hour

// Tombstone хранит снимок удалённой задачи до истечения окна восстановления
type Tombstone struct {
	UUID             uuid.UUID `json:"uuid" db:"uuid"`
	TaskID           uuid.UUID `json:"task_id" db:"task_id"`
	OwnerID          uuid.UUID `json:"owner_id" db:"owner_id"`
	Snapshot         task.Task `json:"snapshot" db:"snapshot"`
	RecoverableUntil time.Time `json:"recoverable_until" db:"recoverable_until"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Expired: окно закрыто в момент now и позже (граница включительно)
func (t *Tombstone) Expired(now time.Time) bool {
	return !now.Before(t.RecoverableUntil)
}

// Handle - то, что возвращается наружу после мягкого удаления
type Handle struct {
	TombstoneID      uuid.UUID `json:"tombstone_id"`
	RecoverableUntil time.Time `json:"recoverable_until"`
}
