package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message - полезная нагрузка внутриприложенческого канала
type Message struct {
	ReminderID uuid.UUID `json:"reminder_id"`
	TaskID     uuid.UUID `json:"task_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	At         time.Time `json:"at"`
}

// Sink - два независимых канала доставки. Оба вызываются на каждое
// сработавшее напоминание, ошибка одного канала не блокирует второй.
type Sink interface {
	ShowSystemNotification(ctx context.Context, userID uuid.UUID, title, body, clickURL string) error
	PostInAppMessage(ctx context.Context, userID uuid.UUID, msg Message) error
}
