package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskcore/internal/logger"
	"taskcore/internal/models/task"
	"taskcore/internal/repository"

	"github.com/google/uuid"
)

// TaskStorage - хранилище в памяти; версия проверяется и двигается под
// общим мьютексом, это и есть атомарный compare-and-swap
type TaskStorage struct {
	mtx      sync.RWMutex
	storage  map[uuid.UUID]*task.Task
	subtasks map[uuid.UUID]*task.Subtask
	ids      []uuid.UUID
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage:  make(map[uuid.UUID]*task.Task),
		subtasks: make(map[uuid.UUID]*task.Subtask),
		ids:      []uuid.UUID{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[t.UUID]; ok {
		return repository.ErrAlreadyExists
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Version == 0 {
		t.Version = 1
	}

	s.storage[t.UUID] = t.Clone()
	s.ids = append(s.ids, t.UUID)
	return nil
}

// Update применяет запись только при совпадении версии и двигает её ровно
// на единицу; вызывающая структура получает новую версию, как при
// RETURNING в postgres-реализации
func (s *TaskStorage) Update(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored, ok := s.storage[t.UUID]
	if !ok {
		return repository.ErrNotFound
	}

	if stored.Version != t.Version {
		logger.Warn("Repository: Конфликт версий при обновлении задачи")
		return repository.ErrVersionConflict
	}

	now := time.Now()
	t.Version++
	t.UpdatedAt = &now
	s.storage[t.UUID] = t.Clone()
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.storage[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *TaskStorage) DeleteFull(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repository.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

func (s *TaskStorage) GetByOwner(ctx context.Context, ownerID uuid.UUID, includeHidden bool, page, limit int) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	res := []*task.Task{}
	skipped := 0
	for _, id := range s.ids {
		t := s.storage[id]
		if t.OwnerID != ownerID {
			continue
		}
		if t.Hidden && !includeHidden {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(res) >= limit {
			break
		}
		res = append(res, t.Clone())
	}
	return res, nil
}

func (s *TaskStorage) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	count := 0
	for _, t := range s.storage {
		if t.OwnerID == ownerID && !t.Hidden {
			count++
		}
	}
	return count, nil
}

func (s *TaskStorage) CreateSubtask(ctx context.Context, st *task.Subtask) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.subtasks[st.UUID]; ok {
		return repository.ErrAlreadyExists
	}

	cp := *st
	s.subtasks[st.UUID] = &cp
	return nil
}

func (s *TaskStorage) UpdateSubtask(ctx context.Context, st *task.Subtask) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.subtasks[st.UUID]; !ok {
		return repository.ErrNotFound
	}

	cp := *st
	s.subtasks[st.UUID] = &cp
	return nil
}

func (s *TaskStorage) GetSubtasks(ctx context.Context, taskID uuid.UUID) ([]*task.Subtask, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Subtask{}
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			cp := *st
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OrderIndex < res[j].OrderIndex })
	return res, nil
}

func (s *TaskStorage) DeleteSubtask(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.subtasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.subtasks, id)
	return nil
}

func (s *TaskStorage) DeleteSubtasksByTask(ctx context.Context, taskID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for id, st := range s.subtasks {
		if st.TaskID == taskID {
			delete(s.subtasks, id)
		}
	}
	return nil
}
