package inmemory

import (
	"context"
	"sync"
	"time"

	"taskcore/internal/models/achievement"
	"taskcore/internal/repository"

	"github.com/google/uuid"
)

// AchievementStorage держит агрегат на пользователя; запись - тот же
// условный CAS по версии, что и у задач
type AchievementStorage struct {
	mtx     sync.Mutex
	storage map[uuid.UUID]*achievement.State
}

func NewAchievementStorage() *AchievementStorage {
	return &AchievementStorage{
		storage: make(map[uuid.UUID]*achievement.State),
	}
}

func (s *AchievementStorage) GetOrCreate(ctx context.Context, userID uuid.UUID) (*achievement.State, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	st, ok := s.storage[userID]
	if !ok {
		st = achievement.NewState(userID)
		s.storage[userID] = st
	}
	return st.Clone(), nil
}

func (s *AchievementStorage) Update(ctx context.Context, st *achievement.State) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored, ok := s.storage[st.UserID]
	if !ok {
		return repository.ErrNotFound
	}

	if stored.Version != st.Version {
		return repository.ErrVersionConflict
	}

	now := time.Now()
	st.Version++
	st.UpdatedAt = &now
	s.storage[st.UserID] = st.Clone()
	return nil
}
