package notify

import (
	"context"
	"sync"

	"taskcore/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InboxSink - реализация Sink по умолчанию: системный канал уходит во
// внешний push-шлюз (здесь - структурный лог как заглушка транспорта),
// внутренний канал складывается в inbox пользователя и читается API
type InboxSink struct {
	mtx     sync.Mutex
	inboxes map[uuid.UUID][]Message
}

func NewInboxSink() *InboxSink {
	return &InboxSink{
		inboxes: make(map[uuid.UUID][]Message),
	}
}

func (s *InboxSink) ShowSystemNotification(ctx context.Context, userID uuid.UUID, title, body, clickURL string) error {
	logger.Info("Notify: Системное уведомление",
		zap.String("user_id", userID.String()),
		zap.String("title", title),
		zap.String("click_url", clickURL),
	)
	return nil
}

func (s *InboxSink) PostInAppMessage(ctx context.Context, userID uuid.UUID, msg Message) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.inboxes[userID] = append(s.inboxes[userID], msg)
	return nil
}

// Drain отдаёт накопленные сообщения и очищает inbox
func (s *InboxSink) Drain(userID uuid.UUID) []Message {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	msgs := s.inboxes[userID]
	delete(s.inboxes, userID)
	return msgs
}
