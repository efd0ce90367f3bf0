package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskcore/internal/models/reminder"
	"taskcore/internal/repository"

	"github.com/google/uuid"
)

type ReminderStorage struct {
	mtx     sync.RWMutex
	storage map[uuid.UUID]*reminder.Reminder
}

func NewReminderStorage() *ReminderStorage {
	return &ReminderStorage{
		storage: make(map[uuid.UUID]*reminder.Reminder),
	}
}

func (s *ReminderStorage) Create(ctx context.Context, r *reminder.Reminder) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[r.UUID]; ok {
		return repository.ErrAlreadyExists
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cp := *r
	s.storage[r.UUID] = &cp
	return nil
}

func (s *ReminderStorage) GetByID(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	r, ok := s.storage[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *ReminderStorage) GetByTask(ctx context.Context, taskID uuid.UUID) ([]*reminder.Reminder, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*reminder.Reminder{}
	for _, r := range s.storage {
		if r.TaskID == taskID {
			cp := *r
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *ReminderStorage) GetUnfired(ctx context.Context, limit int) ([]*reminder.Reminder, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*reminder.Reminder{}
	for _, r := range s.storage {
		if r.Fired {
			continue
		}
		cp := *r
		res = append(res, &cp)
		if len(res) >= limit {
			break
		}
	}
	return res, nil
}

// MarkFired - единственный переход Pending -> Fired; условие fired == false
// проверяется под мьютексом, повторная пометка невозможна
func (s *ReminderStorage) MarkFired(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	r, ok := s.storage[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Fired {
		return repository.ErrAlreadyFired
	}

	r.Fired = true
	r.FiredAt = &at
	return nil
}

func (s *ReminderStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.storage, id)
	return nil
}

func (s *ReminderStorage) DeleteByTask(ctx context.Context, taskID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for id, r := range s.storage {
		if r.TaskID == taskID {
			delete(s.storage, id)
		}
	}
	return nil
}
