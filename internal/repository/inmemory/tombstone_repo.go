package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskcore/internal/models/tombstone"
	"taskcore/internal/repository"

	"github.com/google/uuid"
)

type TombstoneStorage struct {
	mtx     sync.RWMutex
	storage map[uuid.UUID]*tombstone.Tombstone
}

func NewTombstoneStorage() *TombstoneStorage {
	return &TombstoneStorage{
		storage: make(map[uuid.UUID]*tombstone.Tombstone),
	}
}

func (s *TombstoneStorage) Create(ctx context.Context, t *tombstone.Tombstone) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[t.UUID]; ok {
		return repository.ErrAlreadyExists
	}

	cp := *t
	s.storage[t.UUID] = &cp
	return nil
}

func (s *TombstoneStorage) GetByID(ctx context.Context, id uuid.UUID) (*tombstone.Tombstone, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.storage[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TombstoneStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.storage, id)
	return nil
}

func (s *TombstoneStorage) GetExpired(ctx context.Context, now time.Time, limit int) ([]*tombstone.Tombstone, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*tombstone.Tombstone{}
	for _, t := range s.storage {
		if t.Expired(now) {
			cp := *t
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].RecoverableUntil.Before(res[j].RecoverableUntil)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
