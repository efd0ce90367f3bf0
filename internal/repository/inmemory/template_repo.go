package inmemory

import (
	"context"
	"sort"
	"sync"

	"taskcore/internal/models/template"
	"taskcore/internal/repository"

	"github.com/google/uuid"
)

type TemplateStorage struct {
	mtx     sync.RWMutex
	storage map[uuid.UUID]*template.Template
}

func NewTemplateStorage() *TemplateStorage {
	return &TemplateStorage{
		storage: make(map[uuid.UUID]*template.Template),
	}
}

func (s *TemplateStorage) Create(ctx context.Context, t *template.Template) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[t.UUID]; ok {
		return repository.ErrAlreadyExists
	}

	cp := *t
	s.storage[t.UUID] = &cp
	return nil
}

func (s *TemplateStorage) Update(ctx context.Context, t *template.Template) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[t.UUID]; !ok {
		return repository.ErrNotFound
	}

	cp := *t
	s.storage[t.UUID] = &cp
	return nil
}

func (s *TemplateStorage) GetByID(ctx context.Context, id uuid.UUID) (*template.Template, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.storage[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TemplateStorage) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*template.Template, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*template.Template{}
	for _, t := range s.storage {
		if t.OwnerID == ownerID {
			cp := *t
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *TemplateStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.storage, id)
	return nil
}
