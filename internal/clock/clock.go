package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock - источник времени и таймзоны пользователя; внедряется зависимостью,
// чтобы стрик и окно tombstone были проверяемы в тестах
type Clock interface {
	Now() time.Time
	UserTimezone(userID uuid.UUID) *time.Location
}

// System - боевая реализация: UTC и таймзоны из профилей,
// хранимых в памяти (загрузка профилей - забота внешнего слоя)
type System struct {
	mtx      sync.RWMutex
	zones    map[uuid.UUID]*time.Location
	fallback *time.Location
}

func NewSystem(fallback *time.Location) *System {
	if fallback == nil {
		fallback = time.UTC
	}
	return &System{
		zones:    make(map[uuid.UUID]*time.Location),
		fallback: fallback,
	}
}

func (s *System) Now() time.Time {
	return time.Now().UTC()
}

func (s *System) UserTimezone(userID uuid.UUID) *time.Location {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if loc, ok := s.zones[userID]; ok {
		return loc
	}
	return s.fallback
}

func (s *System) SetUserTimezone(userID uuid.UUID, name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.zones[userID] = loc
	return nil
}
